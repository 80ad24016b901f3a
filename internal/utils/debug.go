package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	debugMu  sync.Mutex
	debugOut io.Writer
)

// ConfigureDebug routes debug logging to sling.log under dir. Until it
// is called, Debug messages are dropped.
func ConfigureDebug(dir string) {
	f, err := os.OpenFile(filepath.Join(dir, "sling.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	debugMu.Lock()
	debugOut = f
	debugMu.Unlock()
}

// SetDebugOutput redirects debug logging to an arbitrary writer. Used
// by tests; pass nil to silence logging again.
func SetDebugOutput(w io.Writer) {
	debugMu.Lock()
	debugOut = w
	debugMu.Unlock()
}

// Debug writes a timestamped message to the debug log.
func Debug(format string, args ...any) {
	debugMu.Lock()
	defer debugMu.Unlock()
	if debugOut == nil {
		return
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(debugOut, "[%s] %s\n", timestamp, fmt.Sprintf(format, args...))
}
