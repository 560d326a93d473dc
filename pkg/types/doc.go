// Package types defines the Store and Model interfaces, attribute
// definitions, and standard errors shared by the crudkit handlers and the
// storage backends.
package types
