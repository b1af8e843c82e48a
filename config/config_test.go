package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("db", "", "")
	fs.String("driver", "", "")
	fs.String("log-level", "", "")
	fs.String("log-format", "", "")
	return fs
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "library.db", cfg.DBPath)
	assert.Equal(t, "sqlite3", cfg.Driver)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 10, cfg.BcryptCost)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	yaml := "db_path: from-file.db\ndriver: sqlite\nlog_level: info\nbcrypt_cost: 6\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "library.yaml"), []byte(yaml), 0o644))

	t.Run("file over defaults", func(t *testing.T) {
		cfg, err := Load("", nil)
		require.NoError(t, err)
		assert.Equal(t, "from-file.db", cfg.DBPath)
		assert.Equal(t, "sqlite", cfg.Driver)
		assert.Equal(t, 6, cfg.BcryptCost)
	})

	t.Run("env over file", func(t *testing.T) {
		t.Setenv("LIBRARY_DB_PATH", "from-env.db")
		t.Setenv("LIBRARY_BCRYPT_COST", "4")
		cfg, err := Load("", nil)
		require.NoError(t, err)
		assert.Equal(t, "from-env.db", cfg.DBPath)
		assert.Equal(t, 4, cfg.BcryptCost)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("flags over env", func(t *testing.T) {
		t.Setenv("LIBRARY_DB_PATH", "from-env.db")
		fs := newFlags()
		require.NoError(t, fs.Parse([]string{"--db", "from-flag.db"}))
		cfg, err := Load("", fs)
		require.NoError(t, err)
		assert.Equal(t, "from-flag.db", cfg.DBPath)
		assert.Equal(t, "sqlite", cfg.Driver, "unset flag must not override the file")
	})
}

func TestLoadExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_format: json\n"), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.LogFormat)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{DBPath: "x.db", Driver: "sqlite3", LogLevel: "warn", LogFormat: "text", BcryptCost: 10}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   error
	}{
		{"empty path", func(c *Config) { c.DBPath = "" }, ErrDBPathEmpty},
		{"driver", func(c *Config) { c.Driver = "postgres" }, ErrDriverUnknown},
		{"level", func(c *Config) { c.LogLevel = "loud" }, ErrLogLevelUnknown},
		{"format", func(c *Config) { c.LogFormat = "xml" }, ErrLogFormatUnknown},
		{"cost", func(c *Config) { c.BcryptCost = 99 }, ErrBcryptCost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			require.ErrorIs(t, c.Validate(), tt.want)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{LogLevel: "info", LogFormat: "json"}
	logger := cfg.NewLogger(&buf)
	logger.Debug("hidden")
	logger.Info("shown", "k", 1)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
