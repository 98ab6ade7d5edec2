package gsettings

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestGet(t *testing.T) {
	var gotArgs []string
	c := &Client{
		schema: "org.gnome.settings-daemon.plugins.power",
		run: func(ctx context.Context, args ...string) (string, error) {
			gotArgs = args
			return "1200", nil
		},
	}

	value, err := c.Get(context.Background(), "sleep-inactive-ac-timeout")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if value != "1200" {
		t.Errorf("value = %q, want %q", value, "1200")
	}

	want := []string{"get", "org.gnome.settings-daemon.plugins.power", "sleep-inactive-ac-timeout"}
	if len(gotArgs) != len(want) {
		t.Fatalf("args = %v, want %v", gotArgs, want)
	}
	for i := range want {
		if gotArgs[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, gotArgs[i], want[i])
		}
	}
}

func TestSet(t *testing.T) {
	var gotArgs []string
	c := &Client{
		schema: "org.gnome.settings-daemon.plugins.power",
		run: func(ctx context.Context, args ...string) (string, error) {
			gotArgs = args
			return "", nil
		},
	}

	if err := c.Set(context.Background(), "sleep-inactive-battery-timeout", "0"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	want := []string{"set", "org.gnome.settings-daemon.plugins.power", "sleep-inactive-battery-timeout", "0"}
	if len(gotArgs) != len(want) {
		t.Fatalf("args = %v, want %v", gotArgs, want)
	}
	for i := range want {
		if gotArgs[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, gotArgs[i], want[i])
		}
	}
}

func TestGetWrapsRunError(t *testing.T) {
	c := &Client{
		schema: "org.gnome.settings-daemon.plugins.power",
		run: func(ctx context.Context, args ...string) (string, error) {
			return "", fmt.Errorf("no such key")
		},
	}

	_, err := c.Get(context.Background(), "bogus")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestNotInstalledIsDistinguishable(t *testing.T) {
	c := &Client{
		schema: "org.gnome.settings-daemon.plugins.power",
		run: func(ctx context.Context, args ...string) (string, error) {
			return "", ErrNotInstalled
		},
	}

	err := c.Set(context.Background(), "sleep-inactive-ac-timeout", "0")
	if !errors.Is(err, ErrNotInstalled) {
		t.Errorf("expected errors.Is(err, ErrNotInstalled), got %v", err)
	}
}
