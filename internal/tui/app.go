package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"staywake/internal/mpris"
)

const maxRecentEvents = 5

// Config holds TUI configuration options
type Config struct {
	RefreshRate time.Duration // How often to poll and refresh the display
}

// DefaultConfig returns the default TUI configuration
func DefaultConfig() Config {
	return Config{
		RefreshRate: 1 * time.Second,
	}
}

// Snapshot is one observation of playback and autosuspend state.
type Snapshot struct {
	Player         string
	Status         mpris.Status
	ACTimeout      string
	BatteryTimeout string
	Inhibited      bool
}

// Poller produces state snapshots for the display.
type Poller func(ctx context.Context) (*Snapshot, error)

// Controller sends playback commands to a player by bus name.
// *mpris.SessionBus satisfies it.
type Controller interface {
	PlayPause(name string) error
	Next(name string) error
	Previous(name string) error
}

// transition records an observed change of the suspend policy
type transition struct {
	inhibited bool
	at        time.Time
}

// App is the TUI application for displaying playback and suspend state
type App struct {
	app      *tview.Application
	playback *tview.TextView
	suspend  *tview.TextView
	recent   *tview.TextView
	status   *tview.TextView

	// Configuration
	config Config

	// Controller for playback keybindings
	controller Controller

	// Mutex protects shared state accessed by the keyboard handler and
	// the poll ticker goroutine.
	mu sync.Mutex

	// Current state (guarded by mu)
	current *Snapshot
	pollErr error

	// Session stats (guarded by mu)
	sessionStart  time.Time
	inhibitCount  int
	lastInhibited bool

	// Ring buffer for observed policy transitions (avoids allocation on
	// every change)
	recentBuf   [maxRecentEvents]transition
	recentCount int // total transitions observed (recentCount % maxRecentEvents = next write index)

	// Last-rendered content for change detection
	lastPlayback string
	lastSuspend  string
	lastRecent   string

	// Context cancel function
	cancelFunc context.CancelFunc
}

// New creates a new TUI application with default config
func New() *App {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a new TUI application with the given config
func NewWithConfig(cfg Config) *App {
	a := &App{
		app:          tview.NewApplication(),
		config:       cfg,
		sessionStart: time.Now(),
	}
	a.setupUI()
	return a
}

// SetController sets the controller used for playback keybindings
func (a *App) SetController(c Controller) {
	a.controller = c
}

// setupUI creates the UI layout
func (a *App) setupUI() {
	// Playback panel
	a.playback = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.playback.SetBorder(true).
		SetTitle(" Playback ").
		SetTitleAlign(tview.AlignLeft)

	// Autosuspend panel
	a.suspend = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.suspend.SetBorder(true).
		SetTitle(" Autosuspend ").
		SetTitleAlign(tview.AlignLeft)

	// Recent policy transitions
	a.recent = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.recent.SetBorder(true).
		SetTitle(" Recent ").
		SetTitleAlign(tview.AlignLeft)

	// Status bar
	a.status = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[gray]q:quit  space:play/pause  n:next  p:prev[-]")

	bottomRow := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.suspend, 0, 1, false).
		AddItem(a.recent, 0, 1, false)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.playback, 0, 2, false).
		AddItem(bottomRow, 8, 1, false).
		AddItem(a.status, 1, 1, false)

	a.app.SetInputCapture(a.handleKeyEvent)

	a.app.SetRoot(flex, true)
}

// handleKeyEvent processes keyboard input
func (a *App) handleKeyEvent(event *tcell.EventKey) *tcell.EventKey {
	switch event.Rune() {
	case 'q', 'Q':
		a.app.Stop()
		return nil
	case ' ':
		a.control(func(c Controller, name string) error { return c.PlayPause(name) })
		return nil
	case 'n', 'N':
		a.control(func(c Controller, name string) error { return c.Next(name) })
		return nil
	case 'p', 'P':
		a.control(func(c Controller, name string) error { return c.Previous(name) })
		return nil
	}
	return event
}

// control invokes a playback command against the currently visible player
func (a *App) control(fn func(Controller, string) error) {
	if a.controller == nil {
		return
	}

	a.mu.Lock()
	var name string
	if a.current != nil {
		name = a.current.Player
	}
	a.mu.Unlock()

	if name == "" {
		return
	}
	_ = fn(a.controller, name)
}

// Run starts the TUI and polls for state until the context is cancelled
// or the user quits.
func (a *App) Run(ctx context.Context, poll Poller) error {
	ctx, a.cancelFunc = context.WithCancel(ctx)

	go a.handleUpdates(ctx, poll)

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}

// handleUpdates polls for snapshots and refreshes the display. A single
// ticker drives both polling and redraws to prevent queued redraw buildup.
// All shared App fields are protected by a.mu.
func (a *App) handleUpdates(ctx context.Context, poll Poller) {
	refreshRate := a.config.RefreshRate
	if refreshRate <= 0 {
		refreshRate = 1 * time.Second
	}
	ticker := time.NewTicker(refreshRate)
	defer ticker.Stop()

	a.observe(ctx, poll)
	a.refresh()

	for {
		select {
		case <-ctx.Done():
			a.app.Stop()
			return
		case <-ticker.C:
			a.observe(ctx, poll)
			a.refresh()
		}
	}
}

// observe takes one snapshot and folds it into the app state
func (a *App) observe(ctx context.Context, poll Poller) {
	snap, err := poll(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.pollErr = err
	if err != nil {
		return
	}

	// Record policy transitions for the recent panel
	if snap.Inhibited != a.lastInhibited {
		a.addTransition(snap.Inhibited)
		if snap.Inhibited {
			a.inhibitCount++
		}
		a.lastInhibited = snap.Inhibited
	}

	a.current = snap
}

// addTransition adds a policy change to the ring buffer.
// Must be called with a.mu held.
func (a *App) addTransition(inhibited bool) {
	idx := a.recentCount % maxRecentEvents
	a.recentBuf[idx] = transition{
		inhibited: inhibited,
		at:        time.Now(),
	}
	a.recentCount++
}

// getTransitions returns observed transitions in most-recent-first order.
// Must be called with a.mu held.
func (a *App) getTransitions() []transition {
	n := a.recentCount
	if n > maxRecentEvents {
		n = maxRecentEvents
	}
	result := make([]transition, n)
	for i := 0; i < n; i++ {
		// Walk backwards from the most recently written slot
		idx := (a.recentCount - 1 - i) % maxRecentEvents
		result[i] = a.recentBuf[idx]
	}
	return result
}

// refresh updates all UI components
func (a *App) refresh() {
	a.app.QueueUpdateDraw(func() {
		a.mu.Lock()
		defer a.mu.Unlock()

		a.updatePlayback()
		a.updateSuspend()
		a.updateRecent()
	})
}

// updatePlayback updates the playback panel
func (a *App) updatePlayback() {
	var text string

	switch {
	case a.pollErr != nil:
		text = "\n\n[red]Bus unavailable[-]"
	case a.current == nil || a.current.Player == "":
		text = "\n\n[gray]Player not running[-]"
	default:
		var sb strings.Builder
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("[white::b]%s[-:-:-]\n\n", tview.Escape(a.current.Player)))

		switch a.current.Status {
		case mpris.StatusPlaying:
			sb.WriteString("[green]▶ Playing[-]")
		case mpris.StatusPaused:
			sb.WriteString("[yellow]⏸ Paused[-]")
		case mpris.StatusStopped:
			sb.WriteString("[gray]⏹ Stopped[-]")
		default:
			sb.WriteString("[gray]Unknown[-]")
		}
		text = sb.String()
	}

	if text != a.lastPlayback {
		a.lastPlayback = text
		a.playback.SetText(text)
	}
}

// updateSuspend updates the autosuspend panel
func (a *App) updateSuspend() {
	var sb strings.Builder

	if a.current == nil {
		sb.WriteString("\n[gray]No data yet[-]")
	} else {
		if a.current.Inhibited {
			sb.WriteString("\n[yellow]☀ Suspend inhibited[-]\n\n")
		} else {
			sb.WriteString("\n[green]☾ Suspend enabled[-]\n\n")
		}
		sb.WriteString(fmt.Sprintf("AC: %s  Battery: %s\n", a.current.ACTimeout, a.current.BatteryTimeout))
		sb.WriteString(fmt.Sprintf("Inhibits: %d  Session: %s", a.inhibitCount, formatDuration(time.Since(a.sessionStart))))
	}

	text := sb.String()
	if text != a.lastSuspend {
		a.lastSuspend = text
		a.suspend.SetText(text)
	}
}

// updateRecent updates the recent transitions panel
func (a *App) updateRecent() {
	var sb strings.Builder

	transitions := a.getTransitions()
	if len(transitions) == 0 {
		sb.WriteString("[gray]No policy changes yet[-]")
	} else {
		for i, tr := range transitions {
			if i > 0 {
				sb.WriteString("\n")
			}

			if tr.inhibited {
				sb.WriteString("[yellow]↑[-] ")
				sb.WriteString(fmt.Sprintf("[white]inhibited[-] [gray]%s[-]", tr.at.Format("15:04:05")))
			} else {
				sb.WriteString("[green]↓[-] ")
				sb.WriteString(fmt.Sprintf("[white]restored[-]  [gray]%s[-]", tr.at.Format("15:04:05")))
			}
		}
	}

	text := sb.String()
	if text != a.lastRecent {
		a.lastRecent = text
		a.recent.SetText(text)
	}
}

// Stop stops the TUI application
func (a *App) Stop() {
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	a.app.Stop()
}

// formatDuration formats a duration as MM:SS or HH:MM:SS for longer durations
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
