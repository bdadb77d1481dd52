package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitializeWithoutConfigIsNoop(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer CloseAll()

	if IsDebugMode() {
		t.Error("debug mode enabled without a config file")
	}
	if _, err := os.Stat(filepath.Join(dir, ".sigil", "logs")); !os.IsNotExist(err) {
		t.Error("logs directory created in production mode")
	}
}

func TestInitializeDebugModeWritesLogs(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, ".sigil")
	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		t.Fatal(err)
	}
	cfg := "logging:\n  debug_mode: true\n  level: debug\n"
	if err := os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Initialize(dir); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer CloseAll()

	if !IsDebugMode() {
		t.Fatal("debug mode not enabled")
	}

	Store("store message for test")
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(dir, ".sigil", "logs"))
	if err != nil {
		t.Fatalf("reading logs dir: %v", err)
	}
	var found bool
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), "_store.log") {
			found = true
		}
	}
	if !found {
		t.Error("no store log file written")
	}
}

func TestCategoryFiltering(t *testing.T) {
	Configure(true, "info", map[string]bool{"store": false, "index": true})
	defer Configure(false, "info", nil)

	if IsCategoryEnabled(CategoryStore) {
		t.Error("store category should be disabled")
	}
	if !IsCategoryEnabled(CategoryIndex) {
		t.Error("index category should be enabled")
	}
	// Unlisted categories default to enabled in debug mode.
	if !IsCategoryEnabled(CategoryCommand) {
		t.Error("unlisted category should default to enabled")
	}
}
