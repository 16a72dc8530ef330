// The main package for the chanwatch executable.
package main

import (
	"github.com/chanwatch/chanwatch/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
