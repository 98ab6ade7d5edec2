package mpris

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Change is a decoded PropertiesChanged payload: the (sa{sv}as) triple of
// changed interface, changed properties, and invalidated property names.
type Change struct {
	Interface   string
	Changed     map[string]dbus.Variant
	Invalidated []string
}

// ParseChange decodes a PropertiesChanged signal body.
// It fails when the body does not have the expected (sa{sv}as) shape.
func ParseChange(body []interface{}) (*Change, error) {
	if len(body) != 3 {
		return nil, fmt.Errorf("expected 3 body values, got %d", len(body))
	}

	iface, ok := body[0].(string)
	if !ok {
		return nil, fmt.Errorf("interface name is %T, want string", body[0])
	}

	changed, ok := body[1].(map[string]dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("changed properties are %T, want map[string]dbus.Variant", body[1])
	}

	invalidated, ok := body[2].([]string)
	if !ok {
		return nil, fmt.Errorf("invalidated properties are %T, want []string", body[2])
	}

	return &Change{
		Interface:   iface,
		Changed:     changed,
		Invalidated: invalidated,
	}, nil
}

// StatusInvalidated reports whether PlaybackStatus is in the invalidated
// list, which players emit when the property is no longer meaningful
// (typically because the player is going away).
func (c *Change) StatusInvalidated() bool {
	for _, p := range c.Invalidated {
		if p == PlaybackStatusProperty {
			return true
		}
	}
	return false
}

// Status extracts the new PlaybackStatus carried by this change.
// The second return value reports whether the property was present at
// all; a present but malformed value yields an error.
func (c *Change) Status() (string, bool, error) {
	v, ok := c.Changed[PlaybackStatusProperty]
	if !ok {
		return "", false, nil
	}
	s, err := statusString(v)
	if err != nil {
		return "", true, err
	}
	return s, true, nil
}

// statusString unwraps a PlaybackStatus property value. Players deliver
// it either as a bare string or wrapped in a nested 's' variant.
func statusString(v dbus.Variant) (string, error) {
	switch val := v.Value().(type) {
	case string:
		return val, nil
	case dbus.Variant:
		if s, ok := val.Value().(string); ok {
			return s, nil
		}
		return "", fmt.Errorf("nested variant holds %T, want string", val.Value())
	default:
		return "", fmt.Errorf("property value is %T, want string", val)
	}
}
