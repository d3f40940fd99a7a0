package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(line), &out); err != nil {
		t.Fatalf("decode %q: %v", line, err)
	}
	return out
}

func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: "debug", Format: "json", Output: &buf, ServiceName: "tally-test"})

	ctx := l.WithContext(context.Background())
	ctx = SetUploadID(ctx, "job-1")
	ctx = SetUserID(ctx, "officer-1")

	if got := Field(ctx, FieldUploadID); got != "job-1" {
		t.Errorf("upload id = %v, want job-1", got)
	}
	if got := Field(ctx, FieldUserID); got != "officer-1" {
		t.Errorf("user id = %v, want officer-1", got)
	}
	if got := Field(context.Background(), FieldUploadID); got != nil {
		t.Errorf("bare context carries %v", got)
	}

	CtxDebug(ctx, "processing %d rows", 3)
	out := decodeLine(t, &buf)

	if out["message"] != "processing 3 rows" {
		t.Errorf("message = %v", out["message"])
	}
	if out[FieldUploadID] != "job-1" || out[FieldUserID] != "officer-1" || out["service"] != "tally-test" {
		t.Errorf("fields = %v", out)
	}
}

func TestEntry_MetricFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := New(&Config{Level: "info", Output: &buf}).WithContext(context.Background())

	With(Fields{FieldCount: 5}).WithRow(7).WithDuration(time.Now()).Warn(ctx, "row failed")
	out := decodeLine(t, &buf)

	if out["level"] != "warning" {
		t.Errorf("level = %v, want warning", out["level"])
	}
	if out[FieldRowNumber] != float64(7) || out[FieldCount] != float64(5) {
		t.Errorf("metric fields = %v", out)
	}
	if _, ok := out[FieldDurationMs]; !ok {
		t.Errorf("missing %s in %v", FieldDurationMs, out)
	}
}

func TestFromContext_Default(t *testing.T) {
	if FromContext(context.Background()) != GetDefault() {
		t.Error("FromContext without logger should return the default logger")
	}
	if FromContext(nil) != GetDefault() { //nolint:staticcheck
		t.Error("FromContext(nil) should return the default logger")
	}
}

func TestNewFromEnv_LevelFallback(t *testing.T) {
	var buf bytes.Buffer
	l := NewFromEnv(&EnvConfig{Level: "verbose", Format: "text", Output: &buf, ServiceName: "tally"})
	l.Debug("hidden")
	l.Info("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("unknown level should fall back to info")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestEnvConfig_Writer(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		cfg      EnvConfig
		wantFile bool
	}{
		{name: "local never writes the file", cfg: EnvConfig{Environment: "local", LogFile: dir + "/a.log", LogFileOnly: true}},
		{name: "prod writes the file", cfg: EnvConfig{Environment: "prod", LogFile: dir + "/b.log"}, wantFile: true},
		{name: "no file configured", cfg: EnvConfig{Environment: "prod"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, closer := tt.cfg.writer()
			if out == nil {
				t.Fatal("nil writer")
			}
			if (closer != nil) != tt.wantFile {
				t.Errorf("file writer = %v, want %v", closer != nil, tt.wantFile)
			}
			if closer != nil {
				closer.Close()
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("APP_ENV", "PROD")
	t.Setenv("LOG_MAX_BACKUPS", "3")

	cfg := LoadFromEnv()
	if cfg.Level != "debug" || cfg.Environment != "prod" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Rotation.MaxBackups != 3 || cfg.Rotation.MaxSizeMB != 100 || !cfg.Rotation.Compress {
		t.Errorf("rotation = %+v", cfg.Rotation)
	}
}
