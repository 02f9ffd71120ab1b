// Package main provides the entry point for the atelierboard server.
package main

import "github.com/atelierboard/atelierboard/cmd/atelierboard/cmd"

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd.Execute(version, commit, date)
}
