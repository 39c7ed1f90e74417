// Package device derives stable identifiers and display names for the
// clients an account signs in from. Fingerprints are deterministic over the
// observable request metadata so the same browser on the same network maps
// to the same trusted-device entry across logins.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Metadata defines a public type used by vantor APIs.
//
// Metadata instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Metadata struct {
	IP        string
	UserAgent string
}

// Fingerprint describes the fingerprint operation and its observable behavior.
//
// Fingerprint may return an error when input validation, dependency calls, or security checks fail.
// Fingerprint does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func Fingerprint(meta Metadata) string {
	h := sha256.New()
	h.Write([]byte(meta.UserAgent))
	h.Write([]byte{0})
	h.Write([]byte(meta.IP))
	return hex.EncodeToString(h.Sum(nil))
}

var browserMarkers = []struct {
	marker string
	name   string
}{
	// Order matters: Edge and Opera UAs also contain "Chrome", and every
	// WebKit UA contains "Safari".
	{"Edg/", "Edge"},
	{"OPR/", "Opera"},
	{"Firefox/", "Firefox"},
	{"Chrome/", "Chrome"},
	{"Safari/", "Safari"},
}

var platformMarkers = []struct {
	marker string
	name   string
}{
	{"Windows", "Windows"},
	{"Android", "Android"},
	{"iPhone", "iPhone"},
	{"iPad", "iPad"},
	{"Mac OS X", "macOS"},
	{"Macintosh", "macOS"},
	{"Linux", "Linux"},
}

// DisplayName describes the displayname operation and its observable behavior.
//
// DisplayName may return an error when input validation, dependency calls, or security checks fail.
// DisplayName does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func DisplayName(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return "Unknown device"
	}

	var browser, platform string
	for _, m := range browserMarkers {
		if strings.Contains(userAgent, m.marker) {
			browser = m.name
			break
		}
	}
	for _, m := range platformMarkers {
		if strings.Contains(userAgent, m.marker) {
			platform = m.name
			break
		}
	}

	switch {
	case browser != "" && platform != "":
		return browser + " on " + platform
	case browser != "":
		return browser
	case platform != "":
		return platform
	default:
		return "Unknown device"
	}
}
