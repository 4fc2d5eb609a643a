package main

import (
	"fmt"
	"os"

	"github.com/oremus-labs/ol-tool-relay/internal/relaycli"
)

func main() {
	if err := relaycli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
