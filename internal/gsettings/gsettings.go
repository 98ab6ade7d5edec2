package gsettings

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNotInstalled indicates the gsettings binary is not on PATH,
// i.e. this is probably not a GNOME desktop.
var ErrNotInstalled = errors.New("gsettings command not found")

// runner executes the gsettings binary and returns its trimmed stdout.
// Extracted so tests can substitute a fake.
type runner func(ctx context.Context, args ...string) (string, error)

// Client reads and writes keys in a single GSettings schema by shelling
// out to the gsettings tool.
type Client struct {
	schema string
	run    runner
}

// New creates a gsettings client scoped to one schema.
func New(schema string) *Client {
	return &Client{
		schema: schema,
		run:    runGsettings,
	}
}

// Schema returns the schema this client operates on.
func (c *Client) Schema() string {
	return c.schema
}

// Get reads the current value of a key. The value is returned exactly as
// gsettings prints it (e.g. an integer key yields "1200").
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	out, err := c.run(ctx, "get", c.schema, key)
	if err != nil {
		return "", fmt.Errorf("failed to read %s %s: %w", c.schema, key, err)
	}
	return out, nil
}

// Set writes a value to a key.
func (c *Client) Set(ctx context.Context, key, value string) error {
	if _, err := c.run(ctx, "set", c.schema, key, value); err != nil {
		return fmt.Errorf("failed to write %s %s: %w", c.schema, key, err)
	}
	return nil
}

// runGsettings invokes the real gsettings binary.
func runGsettings(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "gsettings", args...)
	output, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", ErrNotInstalled
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("gsettings exited with an error: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("failed to execute gsettings: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}
