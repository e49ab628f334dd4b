// Package identity resolves the device key and environment partition
// used for quota enforcement.
//
// The device key is caller-supplied and carries no integrity guarantee:
// a client that omits or rotates its ID gets a fresh quota. That is a
// known limitation, not an oversight — the quota is soft throttling for
// a learning product, not a security control.
package identity

import (
	"net/http"
	"regexp"
	"strings"
)

const (
	// DeviceHeaderName carries the device key when the request body has
	// no deviceId field.
	DeviceHeaderName = "X-Device-ID"

	// EnvironmentHeaderName partitions counters across deployments so a
	// dev frontend cannot consume production quota.
	EnvironmentHeaderName = "X-Environment"

	// DefaultEnvironment is used when no partition header is present.
	DefaultEnvironment = "prod"

	// UnknownDevice is the fallback key when no identifier is supplied.
	UnknownDevice = "unknown"

	maxDeviceKeyLen = 64
)

var environmentPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,32}$`)

// DeviceKey resolves the quota partition key for a request: the body
// deviceId if present, else the device header, else UnknownDevice.
// Keys are truncated to 64 characters.
func DeviceKey(bodyID string, r *http.Request) string {
	key := strings.TrimSpace(bodyID)
	if key == "" {
		key = strings.TrimSpace(r.Header.Get(DeviceHeaderName))
	}
	if key == "" {
		key = UnknownDevice
	}
	if runes := []rune(key); len(runes) > maxDeviceKeyLen {
		key = string(runes[:maxDeviceKeyLen])
	}
	return key
}

// Environment resolves the deployment partition for a request. Values
// that do not look like an environment name fall back to the default.
func Environment(r *http.Request) string {
	env := strings.TrimSpace(r.Header.Get(EnvironmentHeaderName))
	if env == "" || !environmentPattern.MatchString(env) {
		return DefaultEnvironment
	}
	return env
}
