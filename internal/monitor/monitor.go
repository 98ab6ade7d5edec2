package monitor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"

	"staywake/internal/journal"
	"staywake/internal/mpris"
	"staywake/internal/power"
)

// Config holds monitor configuration
type Config struct {
	Player            string        // player name, e.g. "vlc"
	DiscoveryInterval time.Duration // how often to look for the player while disconnected
	JournalMaxAge     time.Duration // journal retention, pruned on shutdown
}

// defaultDiscoveryInterval backstops misconfigured discovery intervals;
// time.NewTicker panics on non-positive values.
const defaultDiscoveryInterval = 10 * time.Second

// Monitor tracks one MPRIS player on the session bus and keeps the
// suspend policy in sync with its playback status.
//
// All mutable state (tracked player name, discovery timer, policy flag)
// lives here and is touched only from the single event loop in run, so
// no locking is needed.
type Monitor struct {
	cfg     Config
	bus     mpris.Bus
	toggle  *power.Toggle
	journal *journal.Journal // nil when journaling is disabled
	logger  zerolog.Logger

	prefix       string       // bus-name prefix identifying the player
	player       string       // tracked bus name, "" while disconnected
	discovery    *time.Ticker // non-nil exactly while discovering
	shutdownDone bool
}

// New creates a new Monitor instance
func New(cfg Config, bus mpris.Bus, toggle *power.Toggle, jnl *journal.Journal, logger zerolog.Logger) *Monitor {
	if cfg.DiscoveryInterval <= 0 {
		logger.Warn().
			Dur("configured", cfg.DiscoveryInterval).
			Dur("default", defaultDiscoveryInterval).
			Msg("Invalid discovery interval, using default")
		cfg.DiscoveryInterval = defaultDiscoveryInterval
	}
	return &Monitor{
		cfg:     cfg,
		bus:     bus,
		toggle:  toggle,
		journal: jnl,
		logger:  logger.With().Str("component", "monitor").Logger(),
		prefix:  mpris.ServiceName(cfg.Player),
	}
}

// Run starts the monitor and blocks until a shutdown signal is received
// or the event loop fails.
func (m *Monitor) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Handle first signal gracefully, second signal forces exit
	go func() {
		<-sigChan
		m.logger.Info().Msg("Shutdown signal received, initiating graceful shutdown")
		cancel()

		<-sigChan
		m.logger.Warn().Msg("Second shutdown signal received, forcing exit")
		os.Exit(1)
	}()

	if err := m.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// run is the main event loop. Bus signals, discovery ticks, and
// cancellation are serialized here; shutdown always runs on the way out.
func (m *Monitor) run(ctx context.Context) error {
	signals, err := m.bus.Subscribe()
	if err != nil {
		return fmt.Errorf("failed to subscribe to PropertiesChanged: %w", err)
	}
	defer m.shutdown()

	m.logger.Info().
		Str("player", m.prefix).
		Dur("discovery_interval", m.cfg.DiscoveryInterval).
		Msg("Starting monitor")

	// Immediate discovery attempt; arms the timer when the player is
	// not up yet.
	m.connect(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-signals:
			if !ok {
				return errors.New("bus signal channel closed")
			}
			m.handleSignal(ctx, sig)
		case <-m.discoveryTick():
			if m.connect(ctx) {
				m.logger.Info().Msg("Player connected, stopping discovery")
				m.disarmDiscovery()
			}
		}
	}
}

// discoveryTick returns the discovery channel, or nil (never ready)
// while no timer is armed.
func (m *Monitor) discoveryTick() <-chan time.Time {
	if m.discovery == nil {
		return nil
	}
	return m.discovery.C
}

// connect performs one discovery/connection attempt. It returns true
// when a live player is tracked afterwards.
func (m *Monitor) connect(ctx context.Context) bool {
	if m.player != "" && m.valid() {
		return true
	}

	name, found := m.locate()
	if !found {
		m.player = ""
		m.armDiscovery()
		return false
	}

	m.logger.Info().Str("name", name).Msg("Found player on the bus")
	m.player = name

	status, err := m.bus.PlaybackStatus(name)
	if err != nil {
		if !m.valid() {
			// Stale match: the name vanished between enumeration and
			// the property query.
			m.logger.Warn().Str("name", name).Msg("Player vanished during connect")
			m.player = ""
			m.armDiscovery()
			return false
		}
		m.logger.Warn().Err(err).Msg("Could not determine initial playback status, releasing policy")
		m.apply(ctx, mpris.StatusUnknown)
		return true
	}

	m.logger.Info().Stringer("status", status).Msg("Initial playback status")
	m.apply(ctx, status)
	return true
}

// locate enumerates registered bus names and returns the first one
// matching the player prefix.
func (m *Monitor) locate() (string, bool) {
	names, err := m.bus.ListNames()
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to enumerate bus names")
		return "", false
	}

	for _, name := range names {
		if strings.HasPrefix(name, m.prefix) {
			return name, true
		}
	}
	return "", false
}

// valid is the liveness probe: the tracked name must still have an
// owner. Any lookup error counts as gone.
func (m *Monitor) valid() bool {
	if m.player == "" {
		return false
	}
	owner, err := m.bus.NameOwner(m.player)
	return err == nil && owner != ""
}

// disappear handles the tracked player leaving the bus: restore the
// policy, drop the identity, go back to discovering. Idempotent.
func (m *Monitor) disappear(ctx context.Context) {
	if m.player == "" {
		return
	}

	m.logger.Info().Str("name", m.player).Msg("Player left the bus")
	m.apply(ctx, mpris.StatusUnknown)

	m.player = ""
	m.disarmDiscovery()
	m.armDiscovery()
}

// handleSignal routes one PropertiesChanged delivery.
func (m *Monitor) handleSignal(ctx context.Context, sig *dbus.Signal) {
	if sig.Name != mpris.SignalName {
		m.logger.Debug().Str("signal", sig.Name).Msg("Ignoring unexpected signal")
		return
	}

	// Nothing to route against until a player is tracked.
	if m.player == "" {
		return
	}

	change, err := mpris.ParseChange(sig.Body)
	if err != nil {
		m.logger.Warn().Err(err).Str("sender", sig.Sender).Msg("Dropping malformed PropertiesChanged signal")
		return
	}

	if change.Interface != mpris.PlayerInterface {
		m.logger.Debug().Str("interface", change.Interface).Msg("Ignoring property change for other interface")
		return
	}

	if !m.valid() {
		m.logger.Warn().Str("name", m.player).Msg("Signal received but tracked player no longer owns its name")
		m.disappear(ctx)
		return
	}

	if change.StatusInvalidated() {
		m.logger.Warn().Str("name", m.player).Msg("PlaybackStatus invalidated")
		m.disappear(ctx)
		return
	}

	raw, present, err := change.Status()
	if err != nil {
		m.logger.Warn().Err(err).Msg("Dropping unreadable PlaybackStatus value")
		return
	}
	if !present {
		return
	}

	m.logger.Info().Str("status", raw).Msg("Playback status changed")
	m.apply(ctx, mpris.ParseStatus(raw))
}

// apply drives the toggle from a playback status and records the
// outcome. Policy write failures are logged and journaled, never fatal.
func (m *Monitor) apply(ctx context.Context, status mpris.Status) {
	action, err := m.toggle.Apply(ctx, status)
	if err != nil {
		m.logger.Error().
			Err(err).
			Stringer("status", status).
			Stringer("action", action).
			Msg("Policy change failed")
	} else if action != power.ActionNone {
		m.logger.Info().
			Stringer("status", status).
			Stringer("action", action).
			Msg("Applied suspend policy")
	}

	m.record(ctx, status.String(), action, err)
}

// record appends a journal entry for an effective policy action.
func (m *Monitor) record(ctx context.Context, status string, action power.Action, applyErr error) {
	if m.journal == nil || action == power.ActionNone {
		return
	}

	entry := journal.Entry{
		Player: m.player,
		Status: status,
		Action: action.String(),
		OK:     applyErr == nil,
	}
	if applyErr != nil {
		entry.Detail = applyErr.Error()
	}

	if _, err := m.journal.Record(ctx, entry); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to record policy event")
	}
}

// shutdown releases the discovery timer and the signal subscription and
// restores the suspend policy. Safe to call more than once; the second
// call is a no-op.
func (m *Monitor) shutdown() {
	if m.shutdownDone {
		return
	}
	m.shutdownDone = true

	m.logger.Info().Msg("Shutting down monitor")
	m.disarmDiscovery()

	if err := m.bus.Unsubscribe(); err != nil {
		m.logger.Error().Err(err).Msg("Failed to remove signal subscription")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wasChanged := m.toggle.Changed()
	if err := m.toggle.Release(ctx); err != nil {
		m.logger.Error().Err(err).Msg("Failed to restore suspend policy")
		m.recordShutdown(ctx, wasChanged, err)
		return
	}
	m.recordShutdown(ctx, wasChanged, nil)
}

func (m *Monitor) recordShutdown(ctx context.Context, wasChanged bool, releaseErr error) {
	if !wasChanged {
		return
	}
	entry := journal.Entry{
		Player: m.player,
		Status: "shutdown",
		Action: power.ActionRestore.String(),
		OK:     releaseErr == nil,
	}
	if releaseErr != nil {
		entry.Detail = releaseErr.Error()
	}
	if m.journal != nil {
		if _, err := m.journal.Record(ctx, entry); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to record shutdown restore")
		}
	}
}

// armDiscovery starts the discovery ticker. No-op while connected or
// already armed, which keeps exactly one timer alive in the discovering
// state.
func (m *Monitor) armDiscovery() {
	if m.discovery != nil || m.player != "" {
		return
	}
	m.logger.Info().Dur("interval", m.cfg.DiscoveryInterval).Msg("Starting player discovery")
	m.discovery = time.NewTicker(m.cfg.DiscoveryInterval)
}

// disarmDiscovery cancels the discovery ticker. Idempotent.
func (m *Monitor) disarmDiscovery() {
	if m.discovery == nil {
		return
	}
	m.discovery.Stop()
	m.discovery = nil
}

// Shutdown performs final cleanup after the event loop has returned:
// journal pruning and close. Mirrors Run; call it once Run comes back.
func (m *Monitor) Shutdown() error {
	if m.journal == nil {
		return nil
	}

	ctx := context.Background()
	if m.cfg.JournalMaxAge > 0 {
		if _, err := m.journal.Prune(ctx, m.cfg.JournalMaxAge); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to prune journal")
		}
	}

	if err := m.journal.Close(); err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}
	return nil
}
