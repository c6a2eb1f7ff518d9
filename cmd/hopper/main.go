// Command hopper watches directories for finished media files and converts
// them with the best available hardware encoder.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

var version = "0.1.0"

func main() {
	// A .env beside the working directory may carry secret overrides
	// (HOPPER_NTFY_TOKEN); absence is the normal case.
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
