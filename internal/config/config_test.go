package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadUsesDefaultsWhenFileAbsent(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"), nil)
	require.NoError(t, err)
	assert.Equal(t, "MainServer", cfg.ClientTitle)
	assert.Equal(t, 9090, cfg.Transport.ServerPort)
}

func TestLoadParsesFileAndOverlaysFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"client_title":"Gateway","transport":{"server_port":7000}}`), 0o644))

	cmd := &cobra.Command{Use: "test"}
	RegisterFlags(cmd)
	require.NoError(t, cmd.Flags().Set("server_port", "8080"))

	cfg, err := Load(path, cmd)
	require.NoError(t, err)
	assert.Equal(t, "Gateway", cfg.ClientTitle)
	assert.Equal(t, 8080, cfg.Transport.ServerPort, "flag overrides file")
}

func TestRedisTTLConversion(t *testing.T) {
	r := Redis{TTLSeconds: 5}
	assert.Equal(t, "5s", r.TTL().String())
}
