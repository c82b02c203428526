// Blotch - significant colour extraction for images
//
// Blotch clusters the pixels of an image and keeps the colours that cover
// large, coherent regions of it.
package main

import (
	"os"

	"github.com/jmylchreest/blotch/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
