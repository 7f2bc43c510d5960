// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "companion.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "week1_day0", cfg.Flow.BootstrapID)
	assert.NoError(t, cfg.Validate())
}

func TestLoader_LoadFromYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: 8888
  read_timeout: 60s
backend:
  mode: remote
  base_url: https://companion.example.com
  rate_limit: 5
llm:
  model: gpt-4.1
  max_history_tokens: 2000
flow:
  user_id: u-42
  character_name: Mia
schedule:
  timezone: Europe/Berlin
log:
  level: debug
  output_paths: [stdout, /tmp/companion.log]
`)

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, BackendRemote, cfg.Backend.Mode)
	assert.Equal(t, "https://companion.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, 5.0, cfg.Backend.RateLimit)
	assert.Equal(t, "gpt-4.1", cfg.LLM.Model)
	assert.Equal(t, 2000, cfg.LLM.MaxHistoryTokens)
	assert.Equal(t, "u-42", cfg.Flow.UserID)
	assert.Equal(t, "Mia", cfg.Flow.CharacterName)
	assert.Equal(t, "Europe/Berlin", cfg.Schedule.Timezone)
	assert.Equal(t, []string{"stdout", "/tmp/companion.log"}, cfg.Log.OutputPaths)

	// 未出现在文件中的项保持默认值
	assert.Equal(t, "offtopic", cfg.Flow.OffTopicID)
	assert.Equal(t, 15*time.Second, cfg.Backend.Timeout)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("COMPANION_SERVER_HTTP_PORT", "7070")
	t.Setenv("COMPANION_BACKEND_MODE", "remote")
	t.Setenv("COMPANION_BACKEND_TIMEOUT", "3s")
	t.Setenv("COMPANION_LLM_TEMPERATURE", "0.2")
	t.Setenv("COMPANION_REDIS_ENABLED", "true")
	t.Setenv("COMPANION_SERVER_ALLOWED_ORIGINS", "localhost:*, app.example.com")
	t.Setenv("COMPANION_METRICS_PATH", "/prom")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.HTTPPort)
	assert.Equal(t, BackendRemote, cfg.Backend.Mode)
	assert.Equal(t, 3*time.Second, cfg.Backend.Timeout)
	assert.InDelta(t, 0.2, cfg.LLM.Temperature, 1e-9)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"localhost:*", "app.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "/prom", cfg.Metrics.Path)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, `
flow:
  user_id: from-yaml
  organisation: Acme
`)
	t.Setenv("COMPANION_FLOW_USER_ID", "from-env")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Flow.UserID)
	assert.Equal(t, "Acme", cfg.Flow.Organisation)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_FLOW_USER_ID", "custom")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)
	assert.Equal(t, "custom", cfg.Flow.UserID)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("COMPANION_SERVER_HTTP_PORT", "not-a-number")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COMPANION_SERVER_HTTP_PORT")
}

func TestLoader_WithValidator(t *testing.T) {
	t.Setenv("COMPANION_BACKEND_MODE", "carrier-pigeon")

	_, err := NewLoader().WithValidator((*Config).Validate).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend.mode")
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath(filepath.Join(t.TempDir(), "missing.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Flow, cfg.Flow)
}

func TestLoader_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")

	_, err := NewLoader().WithConfigPath(path).Load()
	assert.Error(t, err)
}

// --- Validate 测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "defaults", modify: func(*Config) {}},
		{
			name:    "port out of range",
			modify:  func(c *Config) { c.Server.HTTPPort = 70000 },
			wantErr: "invalid HTTP port",
		},
		{
			name: "remote backend without url",
			modify: func(c *Config) {
				c.Backend.Mode = BackendRemote
				c.Backend.BaseURL = "not a url"
			},
			wantErr: "backend.base_url",
		},
		{
			name: "remote backend with url",
			modify: func(c *Config) {
				c.Backend.Mode = BackendRemote
				c.Backend.BaseURL = "https://api.example.com"
			},
		},
		{
			name:    "unknown driver",
			modify:  func(c *Config) { c.Database.Driver = "oracle" },
			wantErr: "unsupported database driver",
		},
		{
			name:    "missing model",
			modify:  func(c *Config) { c.LLM.Model = "" },
			wantErr: "llm.model",
		},
		{
			name:    "temperature too high",
			modify:  func(c *Config) { c.LLM.Temperature = 3 },
			wantErr: "temperature",
		},
		{
			name: "retrieval enabled without url",
			modify: func(c *Config) {
				c.Retrieval.Enabled = true
				c.Retrieval.BaseURL = ""
			},
			wantErr: "retrieval.base_url",
		},
		{
			name:    "missing user",
			modify:  func(c *Config) { c.Flow.UserID = "" },
			wantErr: "flow.user_id",
		},
		{
			name:    "bad timezone",
			modify:  func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" },
			wantErr: "schedule.timezone",
		},
		{
			name:    "sample rate",
			modify:  func(c *Config) { c.Telemetry.SampleRate = 1.5 },
			wantErr: "sample_rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestScheduleConfig_Location(t *testing.T) {
	loc, err := ScheduleConfig{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = ScheduleConfig{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name: "postgres DSN",
			config: DatabaseConfig{
				Driver: "postgres", Host: "db", Port: 5432,
				User: "companion", Password: "secret", Name: "companion", SSLMode: "disable",
			},
			expected: "host=db port=5432 user=companion password=secret dbname=companion sslmode=disable",
		},
		{
			name: "mysql DSN",
			config: DatabaseConfig{
				Driver: "mysql", Host: "db", Port: 3306,
				User: "companion", Password: "secret", Name: "companion",
			},
			expected: "companion:secret@tcp(db:3306)/companion?parseTime=true",
		},
		{
			name:     "sqlite DSN",
			config:   DatabaseConfig{Driver: "sqlite", Name: "companion.db"},
			expected: "companion.db",
		},
		{
			name:     "unknown driver",
			config:   DatabaseConfig{Driver: "oracle"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}

// --- MustLoad 测试 ---

func TestMustLoad_Success(t *testing.T) {
	path := writeConfig(t, "server:\n  http_port: 8081\n")

	assert.NotPanics(t, func() {
		cfg := MustLoad(path)
		assert.Equal(t, 8081, cfg.Server.HTTPPort)
	})
}

func TestMustLoad_InvalidFile(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml")

	assert.Panics(t, func() {
		MustLoad(path)
	})
}

func TestLoadFromEnv_Function(t *testing.T) {
	t.Setenv("COMPANION_FLOW_CHARACTER_NAME", "Mia")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "Mia", cfg.Flow.CharacterName)
}
