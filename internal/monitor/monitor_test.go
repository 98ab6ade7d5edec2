package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"

	"staywake/internal/mpris"
	"staywake/internal/power"
)

// fakeBus simulates the session bus for monitor tests.
type fakeBus struct {
	names        []string
	owners       map[string]string
	statuses     map[string]mpris.Status
	listErr      error
	statusErr    error
	signals      chan *dbus.Signal
	subscribeErr error
	unsubscribes int
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		owners:   map[string]string{},
		statuses: map[string]mpris.Status{},
		signals:  make(chan *dbus.Signal, 8),
	}
}

func (b *fakeBus) ListNames() ([]string, error) {
	if b.listErr != nil {
		return nil, b.listErr
	}
	return b.names, nil
}

func (b *fakeBus) NameOwner(name string) (string, error) {
	owner, ok := b.owners[name]
	if !ok {
		return "", errors.New("no such name")
	}
	return owner, nil
}

func (b *fakeBus) PlaybackStatus(name string) (mpris.Status, error) {
	if b.statusErr != nil {
		return mpris.StatusUnknown, b.statusErr
	}
	return b.statuses[name], nil
}

func (b *fakeBus) Subscribe() (<-chan *dbus.Signal, error) {
	if b.subscribeErr != nil {
		return nil, b.subscribeErr
	}
	return b.signals, nil
}

func (b *fakeBus) Unsubscribe() error {
	b.unsubscribes++
	return nil
}

func (b *fakeBus) Close() error { return nil }

// addPlayer registers a live player with a playback status.
func (b *fakeBus) addPlayer(name string, status mpris.Status) {
	b.names = append(b.names, name)
	b.owners[name] = ":1.42"
	b.statuses[name] = status
}

// removePlayer drops a player from the bus entirely.
func (b *fakeBus) removePlayer(name string) {
	var names []string
	for _, n := range b.names {
		if n != name {
			names = append(names, n)
		}
	}
	b.names = names
	delete(b.owners, name)
	delete(b.statuses, name)
}

// fakeSettings mirrors the power package's store fake.
type fakeSettings struct {
	values map[string]string
	setErr error
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{
		values: map[string]string{
			power.KeyACTimeout:      "1800",
			power.KeyBatteryTimeout: "600",
		},
	}
}

func (f *fakeSettings) Get(ctx context.Context, key string) (string, error) {
	return f.values[key], nil
}

func (f *fakeSettings) Set(ctx context.Context, key, value string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.values[key] = value
	return nil
}

func (f *fakeSettings) inhibited() bool {
	return f.values[power.KeyACTimeout] == "0" && f.values[power.KeyBatteryTimeout] == "0"
}

func (f *fakeSettings) restored() bool {
	return f.values[power.KeyACTimeout] == "1800" && f.values[power.KeyBatteryTimeout] == "600"
}

const testPlayerName = "org.mpris.MediaPlayer2.vlc"

func newTestMonitor(bus *fakeBus, settings *fakeSettings) *Monitor {
	cfg := Config{
		Player:            "vlc",
		DiscoveryInterval: 10 * time.Second,
	}
	toggle := power.NewToggle(settings, zerolog.Nop())
	return New(cfg, bus, toggle, nil, zerolog.Nop())
}

// statusSignal builds a PropertiesChanged delivery for the player interface.
func statusSignal(changed map[string]dbus.Variant, invalidated []string) *dbus.Signal {
	return &dbus.Signal{
		Sender: ":1.42",
		Path:   mpris.ObjectPath,
		Name:   mpris.SignalName,
		Body:   []interface{}{mpris.PlayerInterface, changed, invalidated},
	}
}

func TestNonPositiveDiscoveryIntervalFallsBackToDefault(t *testing.T) {
	for _, interval := range []time.Duration{0, -5 * time.Second} {
		bus := newFakeBus()
		toggle := power.NewToggle(newFakeSettings(), zerolog.Nop())
		m := New(Config{Player: "vlc", DiscoveryInterval: interval}, bus, toggle, nil, zerolog.Nop())

		if m.cfg.DiscoveryInterval != defaultDiscoveryInterval {
			t.Errorf("DiscoveryInterval = %v after configuring %v, want %v",
				m.cfg.DiscoveryInterval, interval, defaultDiscoveryInterval)
		}

		// Arming discovery must not panic time.NewTicker.
		if m.connect(context.Background()) {
			t.Fatal("connect succeeded with no player on the bus")
		}
		if m.discovery == nil {
			t.Error("discovery timer not armed after failed connect")
		}
		m.disarmDiscovery()
	}
}

func TestConnectNoPlayerArmsDiscovery(t *testing.T) {
	bus := newFakeBus()
	m := newTestMonitor(bus, newFakeSettings())

	if m.connect(context.Background()) {
		t.Fatal("connect succeeded with no player on the bus")
	}
	if m.player != "" {
		t.Errorf("player = %q, want empty", m.player)
	}
	if m.discovery == nil {
		t.Error("discovery timer not armed after failed connect")
	}
}

func TestConnectFindsPlayerAndAppliesInitialStatus(t *testing.T) {
	bus := newFakeBus()
	bus.addPlayer(testPlayerName, mpris.StatusPlaying)
	settings := newFakeSettings()
	m := newTestMonitor(bus, settings)

	if !m.connect(context.Background()) {
		t.Fatal("connect failed with player on the bus")
	}
	if m.player != testPlayerName {
		t.Errorf("player = %q, want %q", m.player, testPlayerName)
	}
	if !settings.inhibited() {
		t.Errorf("initial Playing status did not inhibit suspend: %v", settings.values)
	}
}

func TestConnectMatchesPrefixedName(t *testing.T) {
	bus := newFakeBus()
	bus.names = []string{"org.freedesktop.DBus", ":1.7"}
	bus.addPlayer(testPlayerName+".instance1234", mpris.StatusPaused)
	m := newTestMonitor(bus, newFakeSettings())

	if !m.connect(context.Background()) {
		t.Fatal("connect failed with prefixed player name")
	}
	if m.player != testPlayerName+".instance1234" {
		t.Errorf("player = %q", m.player)
	}
}

func TestConnectIndeterminateInitialStatusReleases(t *testing.T) {
	bus := newFakeBus()
	bus.addPlayer(testPlayerName, mpris.StatusPlaying)
	bus.statusErr = errors.New("property query failed")
	settings := newFakeSettings()
	m := newTestMonitor(bus, settings)

	if !m.connect(context.Background()) {
		t.Fatal("connect failed")
	}
	if !settings.restored() {
		t.Errorf("indeterminate initial status must not change policy: %v", settings.values)
	}
}

func TestConnectIsNoOpWhileConnected(t *testing.T) {
	bus := newFakeBus()
	bus.addPlayer(testPlayerName, mpris.StatusPaused)
	m := newTestMonitor(bus, newFakeSettings())
	ctx := context.Background()

	if !m.connect(ctx) {
		t.Fatal("connect failed")
	}

	// Enumeration now fails, but the live connection short-circuits it.
	bus.listErr = errors.New("bus gone")
	if !m.connect(ctx) {
		t.Error("reconnect with valid identity should be a no-op success")
	}
}

func TestDiscoveryTickConnectsWhenPlayerAppears(t *testing.T) {
	bus := newFakeBus()
	settings := newFakeSettings()
	m := newTestMonitor(bus, settings)
	ctx := context.Background()

	if m.connect(ctx) {
		t.Fatal("connect succeeded with no player")
	}
	if m.discovery == nil {
		t.Fatal("discovery timer not armed")
	}

	// Player shows up before the next tick.
	bus.addPlayer(testPlayerName, mpris.StatusPlaying)

	if !m.connect(ctx) {
		t.Fatal("connect failed after player appeared")
	}
	m.disarmDiscovery()
	if m.discovery != nil {
		t.Error("discovery timer still armed after successful connect")
	}
	if !settings.inhibited() {
		t.Error("policy not applied on discovered player")
	}
}

func TestSignalStatusChangeDrivesPolicy(t *testing.T) {
	bus := newFakeBus()
	bus.addPlayer(testPlayerName, mpris.StatusPaused)
	settings := newFakeSettings()
	m := newTestMonitor(bus, settings)
	ctx := context.Background()

	if !m.connect(ctx) {
		t.Fatal("connect failed")
	}

	m.handleSignal(ctx, statusSignal(map[string]dbus.Variant{
		mpris.PlaybackStatusProperty: dbus.MakeVariant("Playing"),
	}, nil))
	if !settings.inhibited() {
		t.Fatalf("Playing signal did not inhibit: %v", settings.values)
	}

	m.handleSignal(ctx, statusSignal(map[string]dbus.Variant{
		mpris.PlaybackStatusProperty: dbus.MakeVariant("Paused"),
	}, nil))
	if !settings.restored() {
		t.Fatalf("Paused signal did not restore: %v", settings.values)
	}
}

func TestSignalForOtherInterfaceIsDropped(t *testing.T) {
	bus := newFakeBus()
	bus.addPlayer(testPlayerName, mpris.StatusPaused)
	settings := newFakeSettings()
	m := newTestMonitor(bus, settings)
	ctx := context.Background()

	if !m.connect(ctx) {
		t.Fatal("connect failed")
	}

	sig := &dbus.Signal{
		Sender: ":1.42",
		Path:   mpris.ObjectPath,
		Name:   mpris.SignalName,
		Body: []interface{}{
			"org.mpris.MediaPlayer2",
			map[string]dbus.Variant{mpris.PlaybackStatusProperty: dbus.MakeVariant("Playing")},
			[]string{},
		},
	}
	m.handleSignal(ctx, sig)

	if !settings.restored() {
		t.Errorf("change on another interface must not move policy: %v", settings.values)
	}
}

func TestSignalWithoutTrackedPlayerIsDropped(t *testing.T) {
	bus := newFakeBus()
	settings := newFakeSettings()
	m := newTestMonitor(bus, settings)

	m.handleSignal(context.Background(), statusSignal(map[string]dbus.Variant{
		mpris.PlaybackStatusProperty: dbus.MakeVariant("Playing"),
	}, nil))

	if !settings.restored() {
		t.Errorf("untracked signal must not move policy: %v", settings.values)
	}
}

func TestMalformedSignalIsDropped(t *testing.T) {
	bus := newFakeBus()
	bus.addPlayer(testPlayerName, mpris.StatusPlaying)
	settings := newFakeSettings()
	m := newTestMonitor(bus, settings)
	ctx := context.Background()

	if !m.connect(ctx) {
		t.Fatal("connect failed")
	}
	if !settings.inhibited() {
		t.Fatal("setup: expected inhibited after initial Playing")
	}

	sig := &dbus.Signal{
		Sender: ":1.42",
		Path:   mpris.ObjectPath,
		Name:   mpris.SignalName,
		Body:   []interface{}{"only one value"},
	}
	m.handleSignal(ctx, sig)

	// Fail open: malformed input changes nothing.
	if !settings.inhibited() {
		t.Errorf("malformed signal moved policy: %v", settings.values)
	}
	if m.player != testPlayerName {
		t.Errorf("malformed signal dropped the connection: %q", m.player)
	}
}

func TestUnreadableStatusValueIsDropped(t *testing.T) {
	bus := newFakeBus()
	bus.addPlayer(testPlayerName, mpris.StatusPlaying)
	settings := newFakeSettings()
	m := newTestMonitor(bus, settings)
	ctx := context.Background()

	if !m.connect(ctx) {
		t.Fatal("connect failed")
	}

	m.handleSignal(ctx, statusSignal(map[string]dbus.Variant{
		mpris.PlaybackStatusProperty: dbus.MakeVariant(int32(3)),
	}, nil))

	if !settings.inhibited() {
		t.Errorf("unreadable status value moved policy: %v", settings.values)
	}
}

func TestInvalidatedStatusTriggersDisappearance(t *testing.T) {
	bus := newFakeBus()
	bus.addPlayer(testPlayerName, mpris.StatusPlaying)
	settings := newFakeSettings()
	m := newTestMonitor(bus, settings)
	ctx := context.Background()

	if !m.connect(ctx) {
		t.Fatal("connect failed")
	}
	if !settings.inhibited() {
		t.Fatal("setup: expected inhibited")
	}

	m.handleSignal(ctx, statusSignal(map[string]dbus.Variant{}, []string{mpris.PlaybackStatusProperty}))

	if !settings.restored() {
		t.Errorf("policy not restored on invalidation: %v", settings.values)
	}
	if m.player != "" {
		t.Errorf("player identity not cleared: %q", m.player)
	}
	if m.discovery == nil {
		t.Error("discovery timer not re-armed after disappearance")
	}
}

func TestDeadOwnerTriggersDisappearance(t *testing.T) {
	bus := newFakeBus()
	bus.addPlayer(testPlayerName, mpris.StatusPlaying)
	settings := newFakeSettings()
	m := newTestMonitor(bus, settings)
	ctx := context.Background()

	if !m.connect(ctx) {
		t.Fatal("connect failed")
	}

	// Player crashes: name loses its owner before the next signal.
	bus.removePlayer(testPlayerName)

	m.handleSignal(ctx, statusSignal(map[string]dbus.Variant{
		mpris.PlaybackStatusProperty: dbus.MakeVariant("Playing"),
	}, nil))

	if !settings.restored() {
		t.Errorf("policy not restored after owner vanished: %v", settings.values)
	}
	if m.player != "" {
		t.Errorf("player identity not cleared: %q", m.player)
	}
	if m.discovery == nil {
		t.Error("discovery timer not armed after disappearance")
	}
}

func TestDisappearIsIdempotent(t *testing.T) {
	bus := newFakeBus()
	bus.addPlayer(testPlayerName, mpris.StatusPlaying)
	settings := newFakeSettings()
	m := newTestMonitor(bus, settings)
	ctx := context.Background()

	if !m.connect(ctx) {
		t.Fatal("connect failed")
	}

	m.disappear(ctx)
	first := m.discovery
	m.disappear(ctx)

	if m.discovery != first {
		t.Error("second disappear replaced the discovery timer")
	}
	if !settings.restored() {
		t.Errorf("policy not restored: %v", settings.values)
	}
}

func TestShutdownRestoresPolicy(t *testing.T) {
	bus := newFakeBus()
	bus.addPlayer(testPlayerName, mpris.StatusPlaying)
	settings := newFakeSettings()
	m := newTestMonitor(bus, settings)

	if !m.connect(context.Background()) {
		t.Fatal("connect failed")
	}
	if !settings.inhibited() {
		t.Fatal("setup: expected inhibited")
	}

	m.shutdown()

	if !settings.restored() {
		t.Errorf("shutdown did not restore policy: %v", settings.values)
	}
	if bus.unsubscribes != 1 {
		t.Errorf("unsubscribes = %d, want 1", bus.unsubscribes)
	}
	if m.discovery != nil {
		t.Error("discovery timer still armed after shutdown")
	}
}

func TestShutdownIsReentrant(t *testing.T) {
	bus := newFakeBus()
	m := newTestMonitor(bus, newFakeSettings())

	m.shutdown()
	m.shutdown()

	if bus.unsubscribes != 1 {
		t.Errorf("unsubscribes = %d, want 1", bus.unsubscribes)
	}
}

func TestArmDiscoveryNeverDuplicates(t *testing.T) {
	bus := newFakeBus()
	m := newTestMonitor(bus, newFakeSettings())

	m.armDiscovery()
	first := m.discovery
	m.armDiscovery()

	if m.discovery != first {
		t.Error("second arm replaced the ticker")
	}

	m.disarmDiscovery()
	m.disarmDiscovery() // idempotent
	if m.discovery != nil {
		t.Error("ticker still set after disarm")
	}
}

func TestArmDiscoverySkippedWhileConnected(t *testing.T) {
	bus := newFakeBus()
	bus.addPlayer(testPlayerName, mpris.StatusPaused)
	m := newTestMonitor(bus, newFakeSettings())

	if !m.connect(context.Background()) {
		t.Fatal("connect failed")
	}

	m.armDiscovery()
	if m.discovery != nil {
		t.Error("discovery armed while a player is tracked")
	}
}
