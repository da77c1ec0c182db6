package logger

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestRotator_RotatesWhenFull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")

	r, err := NewRotator(path, 0, 2)
	if err != nil {
		t.Fatalf("NewRotator failed: %v", err)
	}
	defer r.Close()
	r.MaxSize = 10 // bytes, small enough to force rotation

	if _, err := r.Write([]byte("first-line\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := r.Write([]byte("second\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	backup, err := os.ReadFile(path + ".1")
	if err != nil {
		t.Fatalf("Expected backup file: %v", err)
	}
	if string(backup) != "first-line\n" {
		t.Errorf("Unexpected backup content %q", backup)
	}

	current, _ := os.ReadFile(path)
	if string(current) != "second\n" {
		t.Errorf("Unexpected current content %q", current)
	}
}

func TestRotator_AppendsToExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	if err := os.WriteFile(path, []byte("old\n"), 0644); err != nil {
		t.Fatal(err)
	}

	r, err := NewRotator(path, 1, 1)
	if err != nil {
		t.Fatalf("NewRotator failed: %v", err)
	}
	r.Write([]byte("new\n"))
	r.Close()

	got, _ := os.ReadFile(path)
	if string(got) != "old\nnew\n" {
		t.Errorf("Expected append, got %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"ERROR": slog.LevelError,
		"bogus": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "abc")
	if got := RequestID(ctx); got != "abc" {
		t.Errorf("Expected abc, got %q", got)
	}
	if got := RequestID(context.Background()); got != "" {
		t.Errorf("Expected empty id, got %q", got)
	}
}

func TestSetup_ReportsUnopenableLogFile(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	path := filepath.Join(t.TempDir(), "missing-dir", "bot.log")
	err := Setup(Options{Filename: path, MaxSizeMB: 1, MaxBackups: 1, Level: "INFO"})
	if err == nil {
		t.Fatal("Expected an error for an unopenable log file")
	}
	if slog.Default() == prev {
		t.Error("Expected the stdout logger to be installed anyway")
	}

	if err := Setup(Options{Level: "INFO"}); err != nil {
		t.Errorf("Expected stdout-only setup to succeed, got %v", err)
	}
}
