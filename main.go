// The main package for the topcharts executable.
package main

import (
	"github.com/storecrawl/topcharts/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
