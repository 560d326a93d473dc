// Package crudkit carries build information shared by the crudkit binary
// and its packages.
package crudkit

// Version is the crudkit release version.
const Version = "0.1.0"

// ModulePath is the Go module path of crudkit.
const ModulePath = "github.com/mesh-intelligence/crudkit"
