// Command sparkle runs a batch image-composition script read from stdin.
// Per spec.md §6's process surface, it takes no flags, never writes to
// stdout, and exits non-zero if the script reports a recoverable error or
// reads unsuccessfully.
package main

import (
	"io"
	"log"
	"os"

	"github.com/hqge/sparkle/internal/script"
)

func main() {
	src, err := io.ReadAll(os.Stdin)
	if err != nil {
		log.Fatalf("reading script: %v", err)
	}

	it, err := script.NewInterpreter(src)
	if err != nil {
		fatalScriptError(err)
	}
	it.VM().Stderr = os.Stderr

	if err := it.Run(); err != nil {
		fatalScriptError(err)
	}
}

// fatalScriptError prints a recoverable script error to stderr and exits
// with a non-zero status, per spec.md §7.
func fatalScriptError(err error) {
	os.Stderr.WriteString(err.Error() + "\n")
	os.Exit(1)
}
