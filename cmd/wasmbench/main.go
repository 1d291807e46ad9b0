// Command wasmbench drives the cross-language WASM benchmark harness.
package main

import (
	"fmt"
	"os"

	"github.com/jpequegn/wasmbench/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
