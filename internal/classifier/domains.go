// Package classifier narrows the similarity search pool by component or
// domain. Domain membership combines a keyword match on issue metadata with
// a multinomial Naive Bayes model trained per request from weak labels.
package classifier

import (
	"strings"
	"unicode"
)

// Domain is one of a fixed set of subsystem tags.
type Domain string

const (
	DomainDisplay Domain = "display"
	DomainMedia   Domain = "media"
	DomainAudio   Domain = "audio"
	DomainNetwork Domain = "network"
	DomainStorage Domain = "storage"
	DomainPower   Domain = "power"
	DomainInput   Domain = "input"
)

// Domains lists every domain in match priority order.
var Domains = []Domain{
	DomainDisplay,
	DomainMedia,
	DomainAudio,
	DomainNetwork,
	DomainStorage,
	DomainPower,
	DomainInput,
}

var domainKeywords = map[Domain][]string{
	DomainDisplay: {
		"display", "graphics", "drm", "kms", "i915", "xe", "wayland", "x11", "xorg",
		"compositor", "monitor", "external display", "dock", "docked", "dp",
		"displayport", "hdmi", "edp",
	},
	DomainMedia:   {"media", "video", "codec", "decoder", "encode", "hevc", "h.265", "av1", "vaapi", "libva", "gstreamer"},
	DomainAudio:   {"audio", "alsa", "pulseaudio", "pipewire", "speaker", "microphone", "snd"},
	DomainNetwork: {"network", "wifi", "wlan", "bluetooth", "bt", "ethernet", "iwlwifi", "rtl", "mt7921"},
	DomainStorage: {"storage", "nvme", "ssd", "mmc", "emmc", "ufs", "sata", "ext4", "btrfs"},
	DomainPower:   {"power", "suspend", "resume", "s0ix", "hibernate", "battery", "thermal", "fan"},
	DomainInput:   {"touch", "trackpad", "keyboard", "hid", "i2c", "wacom"},
}

var domainAliases = map[string]Domain{
	"graphics":   DomainDisplay,
	"gfx":        DomainDisplay,
	"video":      DomainMedia,
	"multimedia": DomainMedia,
	"sound":      DomainAudio,
	"networking": DomainNetwork,
	"net":        DomainNetwork,
	"wifi":       DomainNetwork,
	"disk":       DomainStorage,
	"pm":         DomainPower,
	"touchpad":   DomainInput,
}

// Keywords returns the metadata keywords for d.
func Keywords(d Domain) []string {
	return domainKeywords[d]
}

// ParseDomain normalizes a user-supplied domain name, accepting a few
// common aliases.
func ParseDomain(s string) (Domain, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", false
	}
	if _, ok := domainKeywords[Domain(s)]; ok {
		return Domain(s), true
	}
	d, ok := domainAliases[s]
	return d, ok
}

func metadataText(components, labels []string) string {
	return strings.ToLower(strings.TrimSpace(strings.Join(components, " ") + " " + strings.Join(labels, " ")))
}

func matchesDomain(text string, d Domain) bool {
	for _, kw := range domainKeywords[d] {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// WeakLabel infers a domain from components and labels: the first domain,
// in priority order, with a keyword inside the metadata text.
func WeakLabel(components, labels []string) (Domain, bool) {
	text := metadataText(components, labels)
	if text == "" {
		return "", false
	}
	for _, d := range Domains {
		if matchesDomain(text, d) {
			return d, true
		}
	}
	return "", false
}

// Tokenize lowercases text and splits it into alphanumeric tokens of at
// least two characters.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			out = append(out, f)
		}
	}
	return out
}
