package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"card_live_dashboard/internal/app"
	"card_live_dashboard/internal/config"
)

type recordingConfig struct{ calls int }

func (r *recordingConfig) WriteExample(dir string) error {
	r.calls++
	return config.NewManager().WriteExample(dir)
}

type recordingTaxonomy struct{ calls int }

func (r *recordingTaxonomy) Build(_ context.Context, path string) error {
	r.calls++
	return os.WriteFile(path, []byte("stub"), 0o644)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitCommandRejectsBadArgCount(t *testing.T) {
	for _, args := range [][]string{nil, {"a", "b"}} {
		cwd := t.TempDir()
		cfg := &recordingConfig{}
		tax := &recordingTaxonomy{}
		cmd := NewInitCommand(InitDeps{Config: cfg, Taxonomy: tax, Logger: quietLogger()})
		abs := make([]string, len(args))
		for i, a := range args {
			abs[i] = filepath.Join(cwd, a)
		}
		cmd.SetArgs(abs)
		cmd.SetOut(io.Discard)
		cmd.SetErr(io.Discard)

		if err := cmd.Execute(); err == nil {
			t.Fatalf("args %v: expected usage error", args)
		}
		entries, err := os.ReadDir(cwd)
		if err != nil {
			t.Fatalf("read dir: %v", err)
		}
		if len(entries) != 0 {
			t.Fatalf("args %v: expected no filesystem changes, found %d entries", args, len(entries))
		}
		if cfg.calls != 0 || tax.calls != 0 {
			t.Fatalf("args %v: collaborators must not be called", args)
		}
	}
}

func TestInitCommandScenario(t *testing.T) {
	home := filepath.Join(t.TempDir(), "cl_home")
	cfg := &recordingConfig{}
	tax := &recordingTaxonomy{}
	cmd := NewInitCommand(InitDeps{Config: cfg, Taxonomy: tax, Logger: quietLogger()})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{home})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, rel := range []string{"config", filepath.Join("data", "card_live"), "db", filepath.Join("db", "taxa.sqlite")} {
		if _, err := os.Stat(filepath.Join(home, rel)); err != nil {
			t.Fatalf("expected %s: %v", rel, err)
		}
	}
	if _, err := os.Stat(filepath.Join(home, "config", config.ExampleFileName)); err != nil {
		t.Fatalf("expected example config: %v", err)
	}
	if !strings.Contains(out.String(), "cardlive-dash "+home) {
		t.Fatalf("expected next-step hint, got %q", out.String())
	}

	cmd = NewInitCommand(InitDeps{Config: cfg, Taxonomy: tax, Logger: quietLogger()})
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{home})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if cfg.calls != 1 || tax.calls != 1 {
		t.Fatalf("expected a single config write and taxonomy build, got %d and %d", cfg.calls, tax.calls)
	}
}

func TestServeCommandRejectsBadArgCount(t *testing.T) {
	built := false
	cmd := NewServeCommand(ServeDeps{
		Build: func(string, app.Options) (*app.App, error) {
			built = true
			return nil, nil
		},
		Logger: quietLogger(),
	})
	cmd.SetArgs([]string{})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected usage error")
	}
	if built {
		t.Fatal("factory must not run on a usage error")
	}
}

func TestServeCommandRunsUntilCanceled(t *testing.T) {
	home := filepath.Join(t.TempDir(), "cl_home")
	initCmd := NewInitCommand(InitDeps{Config: config.NewManager(), Taxonomy: &recordingTaxonomy{}, Logger: quietLogger()})
	initCmd.SetOut(io.Discard)
	initCmd.SetArgs([]string{home})
	if err := initCmd.Execute(); err != nil {
		t.Fatalf("init: %v", err)
	}
	// The stub taxonomy file is not a database.
	if err := os.Remove(filepath.Join(home, "db", "taxa.sqlite")); err != nil {
		t.Fatalf("remove stub: %v", err)
	}

	var gotHome string
	cmd := NewServeCommand(ServeDeps{
		Build: func(h string, opts app.Options) (*app.App, error) {
			gotHome = h
			return app.Build(h, opts)
		},
		Logger: quietLogger(),
	})
	cmd.SetArgs([]string{home, "--addr", "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()
	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for serve to stop")
	}
	if gotHome != home {
		t.Fatalf("factory got %q, want %q", gotHome, home)
	}
}

func TestNewLogger(t *testing.T) {
	var b bytes.Buffer
	logger, err := NewLogger(&b, "warn")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(b.String(), "hidden") || !strings.Contains(b.String(), "shown") {
		t.Fatalf("unexpected output %q", b.String())
	}
	if _, err := NewLogger(&b, "loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
