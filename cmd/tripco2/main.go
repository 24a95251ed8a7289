// Package main provides the tripco2 CLI entrypoint.
package main

import "github.com/kayla-hekim/ds3022-data-project-1/internal/cli"

func main() {
	cli.Execute()
}
