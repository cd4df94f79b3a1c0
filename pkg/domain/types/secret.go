package types

import "encoding/json"

// Secret holds a credential value such as a registry token or webhook URL.
// It stringifies and marshals as a fixed placeholder so that secrets never
// reach logs or API responses; the logger additionally redacts Secret
// values by type via masq. Use Unmask to obtain the raw value at the point
// where it is actually consumed.
type Secret string

const redacted = "[REDACTED]"

// String implements fmt.Stringer with redaction.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// Unmask returns the raw secret value.
func (s Secret) Unmask() string {
	return string(s)
}

// IsEmpty reports whether no value is set.
func (s Secret) IsEmpty() bool {
	return s == ""
}

// MarshalJSON implements json.Marshaler with redaction.
func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
