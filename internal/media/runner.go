package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// commandRunner abstracts subprocess execution so tests can substitute a
// stub. The returned bytes are the command's stdout.
type commandRunner func(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error)

// runCommand executes an external tool with a hard deadline. On a non-zero
// exit the error includes a truncated stderr excerpt for the logs.
func runCommand(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%s timed out after %s", name, timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w (stderr: %s)", name, err, truncateOutput(stderr.String(), 512))
	}
	return stdout.Bytes(), nil
}

func truncateOutput(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
