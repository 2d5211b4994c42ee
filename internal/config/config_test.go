package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nat64d.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_NAT64(t *testing.T) {
	path := writeTemp(t, `
mode: nat64
interface: nat64
nat64_prefix: 64:ff9b::/96
pool:
  - 192.0.2.0/24
static_mappings:
  - v4: 192.0.2.2
    v6: 2001:db8:1::2
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ModeNAT64, cfg.Mode)
	assert.Equal(t, 1500, cfg.MTU) // default applied
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Len(t, cfg.StaticMappings, 1)
}

func TestLoad_CLATRequiresCustomerPrefix(t *testing.T) {
	path := writeTemp(t, `
mode: clat
interface: clat0
nat64_prefix: 64:ff9b::/96
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_DNS64Defaults(t *testing.T) {
	path := writeTemp(t, `
mode: nat64
interface: nat64
nat64_prefix: 64:ff9b::/96
pool:
  - 192.0.2.0/24
dns64:
  enabled: true
  upstream:
    - 8.8.8.8:53
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:53", cfg.DNS64.Listen)
}

func TestLoad_DNS64RequiresUpstream(t *testing.T) {
	path := writeTemp(t, `
mode: nat64
interface: nat64
nat64_prefix: 64:ff9b::/96
pool:
  - 192.0.2.0/24
dns64:
  enabled: true
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_BadPrefix(t *testing.T) {
	path := writeTemp(t, `
mode: nat64
interface: nat64
nat64_prefix: not-a-cidr
pool:
  - 192.0.2.0/24
`)
	_, err := Load(path)
	assert.Error(t, err)
}
