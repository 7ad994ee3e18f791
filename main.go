// The main package for the guidewatch executable.
package main

import (
	"github.com/guidewatch/guidewatch/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
