package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
)

// writeCrashReport atomically writes a report for a recovered panic into
// dir and returns its path.
func writeCrashReport(dir string, now time.Time, panicValue any, stack []byte, lastStop time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create crash directory: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "natsupervisor %s crash report\n", version)
	fmt.Fprintf(&sb, "time: %s\n", now.Format(time.RFC3339))
	if lastStop.IsZero() {
		sb.WriteString("last stop: never\n")
	} else {
		fmt.Fprintf(&sb, "last stop: %s\n", lastStop.Format(time.RFC3339))
	}
	fmt.Fprintf(&sb, "panic: %v\n\n", panicValue)
	sb.Write(stack)

	path := filepath.Join(dir, "crash-"+now.Format("20060102-150405")+".log")
	if err := renameio.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("write crash report: %w", err)
	}
	return path, nil
}
