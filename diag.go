package logger

import (
	"fmt"
	"os"
)

// diag writes a one-line diagnostic to stderr. Used for sink I/O failures
// and other best-effort-absorbed conditions per spec.md §7 — the core
// never pulls in a second logging framework just to log about itself.
func diag(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "logger: "+format+"\n", args...)
}
