package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/menta2k/tile-curator/internal/config"
)

func TestNewWritesFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "tile-curator.log")
	log, err := New(config.LoggingConfig{Level: "debug", File: file, NoColors: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if log.GetLevel() != logrus.DebugLevel || !log.ReportCaller {
		t.Errorf("unexpected level %v or caller reporting %v", log.GetLevel(), log.ReportCaller)
	}

	log.WithFields(logrus.Fields{"file": "a.png", "tile": 3}).Info("tile written")

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "tile written") || !strings.Contains(string(data), "a.png") {
		t.Errorf("unexpected log content %q", data)
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(config.LoggingConfig{Level: "loud"}); err == nil {
		t.Error("expected error")
	}
}

func TestNewInfoHasNoCaller(t *testing.T) {
	log, err := New(config.LoggingConfig{Level: "info"})
	if err != nil {
		t.Fatal(err)
	}
	if log.ReportCaller {
		t.Error("caller reporting should be off at info level")
	}
}
