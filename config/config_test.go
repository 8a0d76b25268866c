package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aisnet/config"
)

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "station.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mmsi: 227006760\ncall_sign: FOOBAR\n"), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.EqualValues(t, 227006760, cfg.MMSI)
	assert.Equal(t, "FOOBAR", cfg.CallSign)
	assert.Equal(t, config.Default().IP, cfg.IP)
}

func TestApplyOverridesOnlyCopiesChangedFlags(t *testing.T) {
	flagCfg := config.Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.FlagSet(fs, &flagCfg)
	require.NoError(t, fs.Parse([]string{"--mmsi", "366123456"}))

	fileCfg := config.Default()
	fileCfg.MMSI = 227006760
	fileCfg.CallSign = "FROMFILE"

	config.ApplyOverrides(fs, &fileCfg, &flagCfg)

	// The explicitly-set flag wins; the untouched flag leaves the file
	// value alone.
	assert.EqualValues(t, 366123456, fileCfg.MMSI)
	assert.Equal(t, "FROMFILE", fileCfg.CallSign)
}

func TestBroadcastIP(t *testing.T) {
	cfg := config.Station{ServerIP: "192.168.1.10", ServerIPNetmask: "255.255.255.0"}
	bcast, err := cfg.BroadcastIP()
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.255", bcast)
}
