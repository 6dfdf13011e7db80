// Package device derives the coarse device fingerprint and the display descriptor of a
// session from request metadata.
package device

// Placeholder values used when a descriptor field cannot be determined.
const (
	UnknownBrowser  = "Unknown Browser"
	UnknownOS       = "Unknown OS"
	UnknownPlatform = "Unknown Platform"
	UnknownDevice   = "Unknown Device"
)

// Fingerprint groups sessions as "same device". Both fields are compared byte for byte;
// a change in either value is a different device.
type Fingerprint struct {
	UserAgentRaw  string
	NetworkOrigin string
}

// Equal reports whether f and o are the exact same pair.
func (f Fingerprint) Equal(o Fingerprint) bool {
	return f.UserAgentRaw == o.UserAgentRaw && f.NetworkOrigin == o.NetworkOrigin
}

// Descriptor is the human-readable description of a device. Every field is always set;
// undeterminable values hold the matching Unknown* placeholder.
type Descriptor struct {
	Browser     string
	OS          string
	Platform    string
	DeviceLabel string
}

// UnknownDescriptor returns a descriptor with every field set to its placeholder.
func UnknownDescriptor() Descriptor {
	return Descriptor{
		Browser:     UnknownBrowser,
		OS:          UnknownOS,
		Platform:    UnknownPlatform,
		DeviceLabel: UnknownDevice,
	}
}

// RequestMetadata is the inbound request metadata a session flow receives from transport.
type RequestMetadata struct {
	UserAgent     string
	NetworkOrigin string
}

// Extract is shorthand for Extract(m.UserAgent, m.NetworkOrigin).
func (m RequestMetadata) Extract() (Fingerprint, Descriptor) {
	return Extract(m.UserAgent, m.NetworkOrigin)
}
