package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdejongh/mirrorsync/pkg/models"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "Backups", cfg.TargetSubfolder)
	assert.True(t, cfg.PerHost)
	assert.Equal(t, models.CompareTimestampSize, cfg.CompareMethod)
	assert.Equal(t, 65536, cfg.Performance.BufferSize)
	assert.Equal(t, DefaultExcludes, cfg.Exclude)

	// Defaults are copied, not shared
	cfg.Exclude[0] = "changed"
	assert.NotEqual(t, "changed", DefaultExcludes[0])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"CompareMethod", func(c *Config) { c.CompareMethod = "md5" }, "compare_method"},
		{"BufferSize", func(c *Config) { c.Performance.BufferSize = 512 }, "performance.buffer_size"},
		{"Bandwidth", func(c *Config) { c.Performance.BandwidthLimit = -1 }, "performance.bandwidth_limit"},
		{"OutputFormat", func(c *Config) { c.Output.Format = "xml" }, "output.format"},
		{"LogFormat", func(c *Config) { c.Logging.Format = "syslog" }, "logging.format"},
		{"LogLevel", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"EmptySource", func(c *Config) { c.Sources = []string{"/a", ""} }, "sources[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			var verr *models.ValidationError
			require.True(t, errors.As(cfg.Validate(), &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestResolve(t *testing.T) {
	t.Run("NoSources", func(t *testing.T) {
		_, err := Default().Resolve()
		assert.ErrorIs(t, err, ErrNoSources)
	})

	t.Run("PerHost", func(t *testing.T) {
		dir := t.TempDir()
		cfg := Default()
		cfg.Sources = []string{filepath.Join(dir, "docs")}
		cfg.Target = filepath.Join(dir, "usb")

		res, err := cfg.Resolve()
		require.NoError(t, err)

		host, err := os.Hostname()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "usb"), res.TargetRoot)
		assert.Equal(t, filepath.Join(dir, "usb", "Backups", host), res.TargetBase)
		assert.Equal(t, filepath.Join(dir, "usb", "Logs"), res.SessionLogDir)
		assert.Equal(t, filepath.Join(dir, "usb", "history.db"), res.HistoryDB)
		assert.Equal(t, []string{filepath.Join(dir, "docs")}, res.Sources)
		assert.Equal(t, models.CompareTimestampSize, res.CompareMethod)
	})

	t.Run("FlatLayout", func(t *testing.T) {
		dir := t.TempDir()
		cfg := Default()
		cfg.Sources = []string{dir}
		cfg.Target = filepath.Join(dir, "usb")
		cfg.TargetSubfolder = ""
		cfg.PerHost = false
		cfg.HistoryDB = filepath.Join(dir, "elsewhere.db")
		cfg.SessionLogDir = ""

		res, err := cfg.Resolve()
		require.NoError(t, err)
		assert.Equal(t, res.TargetRoot, res.TargetBase)
		assert.Equal(t, filepath.Join(dir, "elsewhere.db"), res.HistoryDB)
		assert.Empty(t, res.SessionLogDir)
	})

	t.Run("RelativeSource", func(t *testing.T) {
		cfg := Default()
		cfg.Sources = []string{"relative/dir"}
		res, err := cfg.Resolve()
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(res.Sources[0]))
	})
}

func TestLoad(t *testing.T) {
	t.Run("PartialOverride", func(t *testing.T) {
		cfg, err := Load(strings.NewReader(`
sources:
  - /data/docs
target: /mnt/usb
compare_method: xxhash
performance:
  bandwidth_limit: 1048576
`))
		require.NoError(t, err)
		assert.Equal(t, []string{"/data/docs"}, cfg.Sources)
		assert.Equal(t, models.CompareXXHash, cfg.CompareMethod)
		assert.Equal(t, int64(1048576), cfg.Performance.BandwidthLimit)
		assert.Equal(t, 65536, cfg.Performance.BufferSize)
		assert.True(t, cfg.PerHost)
		assert.Equal(t, DefaultExcludes, cfg.Exclude)
	})

	t.Run("EmptyDocument", func(t *testing.T) {
		cfg, err := Load(strings.NewReader(""))
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("NullExcludeKeepsDefaults", func(t *testing.T) {
		cfg, err := Load(strings.NewReader("exclude:\n"))
		require.NoError(t, err)
		assert.Equal(t, DefaultExcludes, cfg.Exclude)
	})

	t.Run("EmptyExclude", func(t *testing.T) {
		cfg, err := Load(strings.NewReader("exclude: []\n"))
		require.NoError(t, err)
		assert.Empty(t, cfg.Exclude)
	})

	t.Run("UnknownKey", func(t *testing.T) {
		_, err := Load(strings.NewReader("compare: hash\n"))
		assert.Error(t, err)
	})

	t.Run("InvalidValue", func(t *testing.T) {
		_, err := Load(strings.NewReader("compare_method: md5\n"))
		assert.Error(t, err)
	})

	t.Run("HomeExpansion", func(t *testing.T) {
		home, err := os.UserHomeDir()
		if err != nil {
			t.Skip("no home directory")
		}
		cfg, err := Load(strings.NewReader("sources: [\"~/Documents\"]\ntarget: \"~\"\n"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "Documents"), cfg.Sources[0])
		assert.Equal(t, home, cfg.Target)
	})
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Sources = []string{"/data/a", "/data/b"}
	cfg.Target = "/mnt/usb"
	cfg.CompareMethod = models.CompareHash
	require.NoError(t, SaveToFile(cfg, path))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	t.Run("Missing", func(t *testing.T) {
		_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("InvalidRefusedOnSave", func(t *testing.T) {
		bad := Default()
		bad.Output.Format = "xml"
		assert.Error(t, SaveToFile(bad, filepath.Join(t.TempDir(), "bad.yaml")))
	})
}
