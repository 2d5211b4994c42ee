// Package engineid derives a stable identifier for the host a nat64/clat
// engine instance is running on, used only in log lines (cmd/nat64d prints
// it when an engine becomes ready). It is host-wide: engines running side
// by side on one host share it.
package engineid

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"runtime"
)

// HostID returns a stable host identifier: a platform-specific machine ID
// when one is available, else a MAC address, else a cached random value.
func HostID() string {
	raw := uniqIDRaw()
	if raw != "" {
		return raw
	}

	path := fallbackIDPath()
	if id, err := os.ReadFile(path); err == nil {
		return string(id)
	}

	b := make([]byte, 8) // 64-bit random -> 16 hex chars
	_, _ = rand.Read(b)
	id := hex.EncodeToString(b)

	_ = os.WriteFile(path, []byte(id), 0644)
	return id
}

// fallbackIDPath decides where to cache the fallback random ID.
func fallbackIDPath() string {
	if runtime.GOOS == "linux" {
		if _, err := os.Stat("/etc"); err == nil {
			return "/etc/nat64d_engine_id"
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "nat64d_engine_id")
	}
	return filepath.Join(home, ".nat64d_engine_id")
}
