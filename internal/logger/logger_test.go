package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"towing-system/internal/config"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func captureJSON(t *testing.T, log *Logger, write func()) map[string]interface{} {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	write()

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected json line, got %q: %v", buf.String(), err)
	}
	return entry
}

func TestLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	log := New(&config.LoggerConfig{Level: "verbose", Format: "json"})
	if log.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected info level, got %s", log.GetLevel())
	}
}

func TestLogger_ServiceField(t *testing.T) {
	log := New(&config.LoggerConfig{Level: "info", Format: "json"})
	entry := captureJSON(t, log, func() {
		log.WithField("quote_id", "q-1").Info("Quote created")
	})

	if entry["service"] != serviceName {
		t.Fatalf("expected service field, got %v", entry["service"])
	}
	if entry["quote_id"] != "q-1" || entry["msg"] != "Quote created" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestLogger_ForAccount(t *testing.T) {
	log := New(&config.LoggerConfig{Level: "info", Format: "json"})
	accountID := uuid.New()
	entry := captureJSON(t, log, func() {
		log.ForAccount(accountID).WithError(errors.New("cache down")).Warn("Failed to invalidate stats cache")
	})

	if entry["account_id"] != accountID.String() {
		t.Fatalf("expected account_id %s, got %v", accountID, entry["account_id"])
	}
	if entry["error"] != "cache down" || entry["level"] != "warning" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestLogger_FileOutput(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "towing-log")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	_ = tmpfile.Close()
	defer os.Remove(tmpfile.Name())

	log := New(&config.LoggerConfig{Level: "debug", Format: "text", File: tmpfile.Name()})
	log.Debug("route cache miss")

	data, err := os.ReadFile(tmpfile.Name())
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "route cache miss") {
		t.Fatalf("expected message in file, got %q", data)
	}
}
