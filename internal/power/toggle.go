package power

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"staywake/internal/mpris"
)

// GNOME power-management settings this tool manages.
const (
	// Schema is the gsettings schema holding the suspend timeouts.
	Schema = "org.gnome.settings-daemon.plugins.power"

	// KeyACTimeout and KeyBatteryTimeout are the two idle-suspend
	// timeouts, one per power source.
	KeyACTimeout      = "sleep-inactive-ac-timeout"
	KeyBatteryTimeout = "sleep-inactive-battery-timeout"

	// inhibitValue disables automatic suspend when written to a timeout key.
	inhibitValue = "0"
)

// Settings is the external store the toggle writes through.
// gsettings.Client satisfies it.
type Settings interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Action describes what a status transition did to the suspend policy.
type Action int

const (
	ActionNone    Action = iota // nothing changed
	ActionInhibit               // suspend disabled
	ActionRestore               // pre-inhibit values written back
)

// String returns a human-readable representation of the Action
func (a Action) String() string {
	switch a {
	case ActionInhibit:
		return "inhibit"
	case ActionRestore:
		return "restore"
	default:
		return "none"
	}
}

// Toggle flips the suspend policy in the external settings store and
// remembers whether this process changed it, so Release is only ever a
// real write after a successful Inhibit. Not safe for concurrent use;
// the monitor's event loop is the single caller.
type Toggle struct {
	settings Settings
	logger   zerolog.Logger

	changed         bool
	originalAC      string
	originalBattery string
}

// NewToggle creates a Toggle over the given settings store.
func NewToggle(settings Settings, logger zerolog.Logger) *Toggle {
	return &Toggle{
		settings: settings,
		logger:   logger.With().Str("component", "power").Logger(),
	}
}

// Changed reports whether this process currently holds a policy change
// that has not been restored.
func (t *Toggle) Changed() bool {
	return t.changed
}

// Inhibit disables automatic suspend on both power sources.
//
// The first call snapshots the current timeout values so Release can put
// them back; if that snapshot read fails nothing is written, because a
// disable we cannot undo is worse than no disable. Subsequent calls skip
// the read and rewrite both keys unconditionally. The changed flag is
// set as soon as either write lands, so a partial failure is still
// restored later.
func (t *Toggle) Inhibit(ctx context.Context) error {
	if !t.changed {
		ac, err := t.settings.Get(ctx, KeyACTimeout)
		if err != nil {
			return err
		}
		battery, err := t.settings.Get(ctx, KeyBatteryTimeout)
		if err != nil {
			return err
		}
		t.originalAC = ac
		t.originalBattery = battery
		t.logger.Info().
			Str("ac", ac).
			Str("battery", battery).
			Msg("Stored original suspend timeouts")
	}

	errAC := t.settings.Set(ctx, KeyACTimeout, inhibitValue)
	errBattery := t.settings.Set(ctx, KeyBatteryTimeout, inhibitValue)
	if errAC == nil || errBattery == nil {
		t.changed = true
	}

	return errors.Join(errAC, errBattery)
}

// Release writes the pre-inhibit timeout values back. It is a no-op
// unless a prior Inhibit took effect.
//
// The changed flag is cleared even when a write fails: retrying a
// persistently failing store on every transition would loop forever, so
// the failure is surfaced once and the policy is considered released.
func (t *Toggle) Release(ctx context.Context) error {
	if !t.changed {
		return nil
	}

	errAC := t.settings.Set(ctx, KeyACTimeout, t.originalAC)
	errBattery := t.settings.Set(ctx, KeyBatteryTimeout, t.originalBattery)

	t.changed = false
	t.originalAC = ""
	t.originalBattery = ""

	return errors.Join(errAC, errBattery)
}

// Apply maps a playback status to the policy it implies and applies it:
// Playing inhibits suspend, everything else (paused, stopped, unknown)
// releases it. Unknown releasing is the fail-safe: ambiguous input must
// never leave the machine unable to suspend.
//
// The returned error reports write failures for logging and journaling;
// callers must not treat it as fatal.
func (t *Toggle) Apply(ctx context.Context, status mpris.Status) (Action, error) {
	switch status {
	case mpris.StatusPlaying:
		if err := t.Inhibit(ctx); err != nil {
			return ActionInhibit, err
		}
		return ActionInhibit, nil
	default:
		wasChanged := t.changed
		if err := t.Release(ctx); err != nil {
			return ActionRestore, err
		}
		if !wasChanged {
			return ActionNone, nil
		}
		return ActionRestore, nil
	}
}
