package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// Extract returns the fingerprint and descriptor for a request. It never fails; fields the
// user agent does not reveal resolve to placeholders. The fingerprint is the raw pair,
// unnormalized.
func Extract(userAgentRaw, networkOrigin string) (Fingerprint, Descriptor) {
	fp := Fingerprint{UserAgentRaw: userAgentRaw, NetworkOrigin: networkOrigin}
	desc := UnknownDescriptor()
	if strings.TrimSpace(userAgentRaw) == "" {
		return fp, desc
	}

	ua := useragent.New(userAgentRaw)
	if name, version := ua.Browser(); name != "" {
		desc.Browser = joinNonEmpty(name, version)
	}
	if info := ua.OSInfo(); info.Name != "" {
		desc.OS = joinNonEmpty(info.Name, info.Version)
	}
	if p := platformOf(ua); p != "" {
		desc.Platform = p
	}
	if model := strings.TrimSpace(ua.Model()); model != "" {
		desc.DeviceLabel = model
	}
	return fp, desc
}

// platformOf reports the device class. Desktops carry no class and get the placeholder.
func platformOf(ua *useragent.UserAgent) string {
	switch {
	case ua.Bot():
		return "bot"
	case ua.Platform() == "iPad":
		return "tablet"
	case ua.Mobile():
		return "mobile"
	default:
		return ""
	}
}

func joinNonEmpty(a, b string) string {
	return strings.TrimSpace(strings.TrimSpace(a) + " " + strings.TrimSpace(b))
}
