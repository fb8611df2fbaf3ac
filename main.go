// aerial-view draws a bird's-eye dependency view of a Go codebase.
//
// It type-checks a module, accumulates every reference between its named
// types into a weighted graph and renders the most connected part of it.
package main

import (
	"fmt"
	"os"

	"github.com/Benny93/aerial-view/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
