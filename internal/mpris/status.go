package mpris

// Status represents the playback state a player reports through the
// org.mpris.MediaPlayer2.Player interface.
type Status int

const (
	StatusUnknown Status = iota // unparseable or indeterminate
	StatusPlaying
	StatusPaused
	StatusStopped
)

// String returns a human-readable representation of the Status
func (s Status) String() string {
	switch s {
	case StatusPlaying:
		return "Playing"
	case StatusPaused:
		return "Paused"
	case StatusStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// ParseStatus maps a PlaybackStatus string to a Status.
// Anything outside the three MPRIS-defined values parses as StatusUnknown.
func ParseStatus(s string) Status {
	switch s {
	case "Playing":
		return StatusPlaying
	case "Paused":
		return StatusPaused
	case "Stopped":
		return StatusStopped
	default:
		return StatusUnknown
	}
}
