// Command lookbook serves and operates the fashion recommender.
package main

import (
	"fmt"
	"os"

	"github.com/kailas-cloud/lookbook/cmd/lookbook/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
