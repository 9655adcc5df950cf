// The main package for the sitetool executable.
package main

import (
	"github.com/oracle/content-and-experience-toolkit-sub002/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
