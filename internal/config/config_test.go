package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if cfg.AutoUpdateInterval() != 10*time.Minute {
		t.Fatalf("unexpected auto update interval %s", cfg.AutoUpdateInterval())
	}
}

func TestExampleRoundTripsThroughLoad(t *testing.T) {
	dir := t.TempDir()
	if err := NewManager().WriteExample(dir); err != nil {
		t.Fatalf("write example: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, ExampleFileName))
	if err != nil {
		t.Fatalf("read example: %v", err)
	}
	if !strings.HasPrefix(string(raw), "# CARD:Live") {
		t.Fatalf("expected commented header, got %q", string(raw)[:20])
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), raw, 0o644); err != nil {
		t.Fatalf("copy example: %v", err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load copied example: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("example should load to defaults, got %+v", cfg)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	body := "url_base_pathname: /cardlive\nauto_update_minutes: 5\nantarctica_na_before: \"\"\n"
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CARDLIVE_AUTO_UPDATE_MINUTES", "2")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.URLBasePathname != "/cardlive/" {
		t.Fatalf("expected normalized base path, got %q", cfg.URLBasePathname)
	}
	if cfg.AutoUpdateMinutes != 2 {
		t.Fatalf("expected env override 2, got %d", cfg.AutoUpdateMinutes)
	}
	if !cfg.AntarcticaThreshold().IsZero() {
		t.Fatalf("expected disabled antarctica correction")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"relative base": "url_base_pathname: cardlive\n",
		"bad date":      "antarctica_na_before: July 2020\n",
		"bad yaml":      "url_base_pathname: [\n",
	}
	for name, body := range cases {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0o644); err != nil {
			t.Fatalf("%s: write config: %v", name, err)
		}
		if _, err := Load(dir); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
