// Package main is the crudkit command.
package main

import "github.com/mesh-intelligence/crudkit/internal/cli"

func main() {
	cli.Execute()
}
