package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	tmpFile, err := os.CreateTemp(t.TempDir(), "monitor-*.yaml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	return tmpFile.Name()
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"TELEGRAM_BOT_TOKEN", "POSTGRES_DSN", "CLICKHOUSE_DSN",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "LOG_LEVEL", "METRICS_ADDR",
	} {
		t.Setenv(k, "")
	}
}

const minimalConfig = `
monitor:
  origins: ["@alpha_calls"]
  destinations: ["@trend_bot"]
telegram:
  bot_token: "123:abc"
storage:
  use_memory: true
`

func TestLoad_AppliesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeTempConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Dedup.TTL != 60*time.Minute {
		t.Errorf("dedup ttl = %v, want 60m", cfg.Dedup.TTL)
	}
	if cfg.Forward.MaxAttempts != 3 || cfg.Forward.RetryDelay != 5*time.Second {
		t.Errorf("forward = %+v", cfg.Forward)
	}
	if cfg.Monitor.SendDelay != 5*time.Second {
		t.Errorf("send delay = %v, want 5s", cfg.Monitor.SendDelay)
	}
	offsets := cfg.OffsetList()
	if len(offsets) != 3 || offsets[0].Name != "10m" || offsets[2].Name != "1h" {
		t.Errorf("offsets = %+v", offsets)
	}
	if cfg.Source.Kind != SourceTelegram {
		t.Errorf("source kind = %q", cfg.Source.Kind)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `
monitor:
  destinations: ["@a", "@b"]
  send_delay: 2s
  offsets: [1m, 5m, 90s]
  timezone: UTC
forward:
  max_attempts: 5
  retry_delay: 100ms
telegram:
  bot_token: "123:abc"
storage:
  use_memory: true
`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "monitor.offsets") {
		t.Fatalf("expected offsets error for unordered delays, got %v", err)
	}

	path = writeTempConfig(t, `
monitor:
  destinations: ["@a", "@b"]
  send_delay: 2s
  offsets: [1m, 5m, 2h]
  timezone: UTC
forward:
  max_attempts: 5
  retry_delay: 100ms
telegram:
  bot_token: "123:abc"
storage:
  use_memory: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Forward.MaxAttempts != 5 || cfg.Forward.RetryDelay != 100*time.Millisecond {
		t.Errorf("forward = %+v", cfg.Forward)
	}
	names := []string{}
	for _, o := range cfg.OffsetList() {
		names = append(names, o.Name)
	}
	if strings.Join(names, ",") != "1m,5m,2h" {
		t.Errorf("offset names = %v", names)
	}
	loc, err := cfg.Location()
	if err != nil || loc != time.UTC {
		t.Errorf("location = %v, %v", loc, err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", " 999:env ")
	t.Setenv("POSTGRES_DSN", "postgres://u:p@db:5432/trend")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("REDIS_DB", "2")

	cfg, err := Load(writeTempConfig(t, `
monitor:
  destinations: ["@a"]
dedup:
  backend: redis
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.BotToken != "999:env" {
		t.Errorf("bot token = %q", cfg.Telegram.BotToken)
	}
	if cfg.Storage.PostgresDSN != "postgres://u:p@db:5432/trend" {
		t.Errorf("postgres dsn = %q", cfg.Storage.PostgresDSN)
	}
	if cfg.Dedup.Redis.Addr != "cache:6379" || cfg.Dedup.Redis.DB != 2 {
		t.Errorf("redis = %+v", cfg.Dedup.Redis)
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "no destinations",
			content: "telegram:\n  bot_token: x\nstorage:\n  use_memory: true\n",
			wantErr: "monitor.destinations",
		},
		{
			name:    "zero attempts",
			content: minimalConfig + "forward:\n  max_attempts: 0\n",
			wantErr: "forward.max_attempts",
		},
		{
			name:    "bad backend",
			content: minimalConfig + "dedup:\n  backend: disk\n",
			wantErr: "dedup.backend",
		},
		{
			name:    "missing token",
			content: "monitor:\n  destinations: [\"@a\"]\nstorage:\n  use_memory: true\n",
			wantErr: "telegram.bot_token",
		},
		{
			name:    "missing postgres",
			content: "monitor:\n  destinations: [\"@a\"]\ntelegram:\n  bot_token: x\n",
			wantErr: "storage.postgres_dsn",
		},
		{
			name:    "websocket without url",
			content: minimalConfig + "source:\n  kind: websocket\n",
			wantErr: "source.websocket_url",
		},
		{
			name:    "bad timezone",
			content: "monitor:\n  destinations: [\"@a\"]\n  timezone: Mars/Olympus\ntelegram:\n  bot_token: x\nstorage:\n  use_memory: true\n",
			wantErr: "monitor.timezone",
		},
		{
			name:    "negative pool size",
			content: minimalConfig + "  postgres_max_conns: -1\n",
			wantErr: "storage.postgres_max_conns",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Load(writeTempConfig(t, tt.content))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/monitor.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadEnv_MissingFileIsNotAnError(t *testing.T) {
	if err := LoadEnv(t.TempDir() + "/.env"); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
}

func TestLoadReport_NeedsOnlyStorage(t *testing.T) {
	clearEnv(t)
	t.Setenv("POSTGRES_DSN", "postgres://u:p@db:5432/trend")

	cfg, err := LoadReport(writeTempConfig(t, "report:\n  days: 3\n"))
	if err != nil {
		t.Fatalf("LoadReport: %v", err)
	}
	if cfg.Report.Days != 3 || cfg.Report.OutputDir != "reports" {
		t.Errorf("report = %+v", cfg.Report)
	}

	clearEnv(t)
	if _, err := LoadReport(writeTempConfig(t, "report:\n  days: 3\n")); err == nil {
		t.Fatal("expected error without postgres dsn")
	}
}
