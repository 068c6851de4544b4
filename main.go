// Package main is the entry point for the grafter CLI.
package main

import "gooze.dev/pkg/grafter/cmd"

func main() {
	cmd.Execute()
}
