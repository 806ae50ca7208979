// The main package for the navercrawl executable.
package main

import (
	"github.com/kdataworks/navercrawl/cmd"
)

func main() {
	cmd.Execute()
}
