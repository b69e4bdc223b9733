// Package main is the single-binary entrypoint for sunbird.
package main

import "github.com/promotebya/sunbird-client-sub002/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
