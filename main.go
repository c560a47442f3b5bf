// The main package for the concepts executable.
package main

import (
	"github.com/devcellar/concepts/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
