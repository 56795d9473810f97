package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Amr-9/btcvanity/pkg/generator/cpu"
)

func TestDefaultConfigValid(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, cpu.DefaultBatchSize, cfg.Search.BatchSize)
	require.Equal(t, cpu.DefaultParallelThreshold, cfg.Search.ParallelThreshold)
	require.False(t, cfg.AllowAnyOrigin())
}

func TestLoadCommandLine(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	cfg, err := Load([]string{
		"--homedir", home,
		"--listen", "127.0.0.1:9000",
		"--allowedorigin", "*",
		"--search.workers=4",
		"--search.pollinterval=1s",
	})
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:9000", cfg.Listen)
	require.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	require.True(t, cfg.AllowAnyOrigin())
	require.Equal(t, 4, cfg.Search.Workers)
	require.Equal(t, time.Second, cfg.Search.PollInterval)
	require.Equal(t, filepath.Join(home, "data"), cfg.DataDir)
	require.Equal(t, filepath.Join(home, "logs", "btcvanity.log"),
		cfg.LogFile())

	// No config file exists in the fresh home dir.
	require.Error(t, cfg.ConfigFileWarning())

	engine := cfg.Search.EngineConfig()
	require.Equal(t, 4, engine.Workers)
	require.Equal(t, time.Second, engine.PollInterval)
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	conf := "[Application Options]\n" +
		"listen=0.0.0.0:1234\n" +
		"debuglevel=debug\n" +
		"\n[search]\n" +
		"search.batchsize=500\n"
	require.NoError(t, os.WriteFile(
		filepath.Join(home, defaultConfigFilename), []byte(conf), 0600,
	))

	cfg, err := Load([]string{"--homedir", home, "--debuglevel=trace"})
	require.NoError(t, err)
	require.NoError(t, cfg.ConfigFileWarning())

	require.Equal(t, "0.0.0.0:1234", cfg.Listen)
	require.Equal(t, 500, cfg.Search.BatchSize)

	// The command line wins over the file.
	require.Equal(t, "trace", cfg.DebugLevel)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Parallel()

	_, err := Load([]string{
		"--homedir", t.TempDir(), "--search.batchsize=0",
	})
	require.ErrorContains(t, err, "batchsize")

	_, err = Load([]string{"--nosuchflag"})
	require.Error(t, err)
	require.False(t, IsHelp(err))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{
			name:   "empty listen",
			mutate: func(c *Config) { c.Listen = "" },
			errMsg: "listen",
		},
		{
			name:   "negative log files",
			mutate: func(c *Config) { c.MaxLogFiles = -1 },
			errMsg: "maxlogfiles",
		},
		{
			name:   "zero log size",
			mutate: func(c *Config) { c.MaxLogFileSize = 0 },
			errMsg: "maxlogfilesize",
		},
		{
			name:   "negative workers",
			mutate: func(c *Config) { c.Search.Workers = -1 },
			errMsg: "workers",
		},
		{
			name:   "too many workers",
			mutate: func(c *Config) { c.Search.Workers = maxWorkers + 1 },
			errMsg: "workers",
		},
		{
			name:   "zero progress",
			mutate: func(c *Config) { c.Search.ProgressEvery = 0 },
			errMsg: "progressevery",
		},
		{
			name: "fast poll",
			mutate: func(c *Config) {
				c.Search.PollInterval = time.Millisecond
			},
			errMsg: "pollinterval",
		},
		{
			name:   "zero threshold",
			mutate: func(c *Config) { c.Search.ParallelThreshold = 0 },
			errMsg: "parallelthreshold",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tc.mutate(&cfg)
			require.ErrorContains(t, cfg.Validate(), tc.errMsg)
		})
	}
}

func TestCleanAndExpandPath(t *testing.T) {
	t.Setenv("BTCVANITY_TEST_DIR", "/tmp/vanity")

	require.Empty(t, CleanAndExpandPath(""))
	require.Equal(t, "/tmp/vanity/db",
		CleanAndExpandPath("$BTCVANITY_TEST_DIR/./db"))
	require.NotContains(t, CleanAndExpandPath("~/x"), "~")
}
