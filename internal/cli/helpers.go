package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/promotebya/sunbird-client-sub002/internal/daemon"
)

// openDaemon wires the engine over the configured store for one command.
func openDaemon(ctx context.Context) (*daemon.Daemon, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return daemon.NewOneShot(ctx, cfg)
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	return writeJSON(os.Stdout, v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// check renders a boolean as a table mark.
func check(b bool) string {
	if b {
		return "x"
	}
	return ""
}
