// Command birch drives the parser/heap/GC core standalone: parsing one
// or more files or an inline expression, printing the resulting
// expression graph, and exposing the GC-tuning environment variables
// as flags so the allocator can be exercised end to end without an
// evaluator. There is no eval/REPL language behavior here — "REPL
// mode" only reads and parses, it never runs anything.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
