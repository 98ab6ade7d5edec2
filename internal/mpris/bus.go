package mpris

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Well-known D-Bus names involved in MPRIS monitoring.
const (
	// ServicePrefix is the namespace every MPRIS player registers under.
	ServicePrefix = "org.mpris.MediaPlayer2."

	// ObjectPath is the fixed object path MPRIS players export.
	ObjectPath = dbus.ObjectPath("/org/mpris/MediaPlayer2")

	// PlayerInterface carries the PlaybackStatus property.
	PlayerInterface = "org.mpris.MediaPlayer2.Player"

	// PlaybackStatusProperty is the property this tool watches.
	PlaybackStatusProperty = "PlaybackStatus"

	propertiesInterface = "org.freedesktop.DBus.Properties"
	propertiesChanged   = "PropertiesChanged"

	// SignalName is the fully qualified signal name as delivered on the wire.
	SignalName = propertiesInterface + "." + propertiesChanged
)

// ServiceName returns the well-known bus-name prefix for a player name,
// e.g. "vlc" -> "org.mpris.MediaPlayer2.vlc".
func ServiceName(player string) string {
	return ServicePrefix + player
}

// Bus is the subset of session-bus capabilities the monitor needs.
// SessionBus implements it against a live bus; tests substitute fakes.
type Bus interface {
	// ListNames enumerates all names currently registered on the bus.
	ListNames() ([]string, error)

	// NameOwner resolves the unique connection name that owns name.
	// An error, or an empty owner, means the name is gone.
	NameOwner(name string) (string, error)

	// PlaybackStatus queries the player's PlaybackStatus property with
	// a synchronous Get call against the given bus name.
	PlaybackStatus(name string) (Status, error)

	// Subscribe installs the PropertiesChanged match (any sender, MPRIS
	// object path) and returns the signal delivery channel. At most one
	// subscription is live at a time.
	Subscribe() (<-chan *dbus.Signal, error)

	// Unsubscribe removes the match and stops delivery. Idempotent.
	Unsubscribe() error

	// Close releases the bus connection.
	Close() error
}

// SessionBus is the godbus-backed Bus implementation.
type SessionBus struct {
	conn    *dbus.Conn
	signals chan *dbus.Signal
}

// ConnectSession opens a private connection to the session bus.
func ConnectSession() (*SessionBus, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &SessionBus{conn: conn}, nil
}

// ListNames enumerates all registered bus names in one blocking round-trip.
func (b *SessionBus) ListNames() ([]string, error) {
	var names []string
	call := b.conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0)
	if call.Err != nil {
		return nil, fmt.Errorf("ListNames call failed: %w", call.Err)
	}
	if err := call.Store(&names); err != nil {
		return nil, fmt.Errorf("failed to decode ListNames reply: %w", err)
	}
	return names, nil
}

// NameOwner looks up the current owner of a bus name.
func (b *SessionBus) NameOwner(name string) (string, error) {
	var owner string
	call := b.conn.BusObject().Call("org.freedesktop.DBus.GetNameOwner", 0, name)
	if call.Err != nil {
		return "", fmt.Errorf("GetNameOwner call failed: %w", call.Err)
	}
	if err := call.Store(&owner); err != nil {
		return "", fmt.Errorf("failed to decode GetNameOwner reply: %w", err)
	}
	return owner, nil
}

// PlaybackStatus queries the player's current PlaybackStatus property.
func (b *SessionBus) PlaybackStatus(name string) (Status, error) {
	obj := b.conn.Object(name, ObjectPath)
	v, err := obj.GetProperty(PlayerInterface + "." + PlaybackStatusProperty)
	if err != nil {
		return StatusUnknown, fmt.Errorf("failed to get PlaybackStatus: %w", err)
	}

	s, err := statusString(v)
	if err != nil {
		return StatusUnknown, err
	}
	return ParseStatus(s), nil
}

// PlayPause toggles playback on the named player.
func (b *SessionBus) PlayPause(name string) error {
	return b.playerCall(name, "PlayPause")
}

// Next skips to the next track on the named player.
func (b *SessionBus) Next(name string) error {
	return b.playerCall(name, "Next")
}

// Previous skips to the previous track on the named player.
func (b *SessionBus) Previous(name string) error {
	return b.playerCall(name, "Previous")
}

func (b *SessionBus) playerCall(name, method string) error {
	obj := b.conn.Object(name, ObjectPath)
	if call := obj.Call(PlayerInterface+"."+method, 0); call.Err != nil {
		return fmt.Errorf("%s call failed: %w", method, call.Err)
	}
	return nil
}

// matchOptions returns the signal match this tool installs. Kept in one
// place so AddMatchSignal and RemoveMatchSignal stay symmetric.
func matchOptions() []dbus.MatchOption {
	return []dbus.MatchOption{
		dbus.WithMatchObjectPath(ObjectPath),
		dbus.WithMatchInterface(propertiesInterface),
		dbus.WithMatchMember(propertiesChanged),
	}
}

// Subscribe installs the PropertiesChanged match and starts delivery.
func (b *SessionBus) Subscribe() (<-chan *dbus.Signal, error) {
	if b.signals != nil {
		return nil, fmt.Errorf("already subscribed")
	}

	if err := b.conn.AddMatchSignal(matchOptions()...); err != nil {
		return nil, fmt.Errorf("failed to add signal match: %w", err)
	}

	ch := make(chan *dbus.Signal, 16)
	b.conn.Signal(ch)
	b.signals = ch
	return ch, nil
}

// Unsubscribe removes the signal match and stops delivery.
func (b *SessionBus) Unsubscribe() error {
	if b.signals == nil {
		return nil
	}

	b.conn.RemoveSignal(b.signals)
	b.signals = nil

	if err := b.conn.RemoveMatchSignal(matchOptions()...); err != nil {
		return fmt.Errorf("failed to remove signal match: %w", err)
	}
	return nil
}

// Close releases the bus connection.
func (b *SessionBus) Close() error {
	return b.conn.Close()
}
