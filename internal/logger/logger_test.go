package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"", zapcore.InfoLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{" error ", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("level = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewConsoleJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "warn", Console: &buf})
	if err != nil {
		t.Fatal(err)
	}

	log.Info("hidden")
	log.Warn("shown")
	_ = log.Sync()

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("lines = %d, want 1: %s", len(lines), buf.String())
	}
	var entry map[string]interface{}
	if err := json.Unmarshal(lines[0], &entry); err != nil {
		t.Fatal(err)
	}
	if entry["msg"] != "shown" || entry["level"] != "warn" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "player.log")
	log, err := New(Config{Level: "debug", OutputPath: path, MaxSize: 1})
	if err != nil {
		t.Fatal(err)
	}
	log.Debug("to file")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte(`"msg":"to file"`)) {
		t.Errorf("log file = %s", data)
	}
}

func TestNewNothingConfigured(t *testing.T) {
	log, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	log.Info("dropped")
}

func TestNewBadLevel(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Error("expected an error for an unknown level")
	}
}
