// Command legend inspects color scales offline: it prints lookup tables,
// styles individual values, renders legends to HTML and drives the analysis
// backend that produces the data sets.
//
// Usage:
//
//	go run ./cmd/legend table --kind vulnerability --max 12000
//	go run ./cmd/legend style --kind traffic 0 12 45
//	go run ./cmd/legend chart --kind vulnerability --out legend.html
//	go run ./cmd/legend backend vulnerability --task-id 42
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "legend:", err)
		os.Exit(1)
	}
}
