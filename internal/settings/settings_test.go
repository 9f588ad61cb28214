package settings

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestIsEnabled(t *testing.T) {
	const id = "com.example.quiz_application/com.example.quiz_application.AppSwitchAccessibilityService"
	tests := []struct {
		name    string
		enabled string
		want    bool
	}{
		{"empty", "", false},
		{"exact", id, true},
		{"upper case", "COM.EXAMPLE.QUIZ_APPLICATION/COM.EXAMPLE.QUIZ_APPLICATION.APPSWITCHACCESSIBILITYSERVICE", true},
		{"among others", "com.a/com.a.S:" + id + ":com.b/com.b.S", true},
		{"substring", "x" + id, false},
		{"others only", "com.a/com.a.S:com.b/com.b.S", false},
		{"padded entry", "com.a/com.a.S: " + id + " ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEnabled(tt.enabled, id); got != tt.want {
				t.Fatalf("IsEnabled(%q) = %v, want %v", tt.enabled, got, tt.want)
			}
		})
	}
	if IsEnabled(id, "") {
		t.Error("empty service id must never match")
	}
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enabled")
	if err := os.WriteFile(path, []byte("com.a/com.a.S\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := FileSource{Path: path}.EnabledServices(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != "com.a/com.a.S" {
		t.Fatalf("got %q", got)
	}

	if _, err := (FileSource{Path: filepath.Join(t.TempDir(), "missing")}).EnabledServices(context.Background()); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestCommandSource(t *testing.T) {
	got, err := CommandSource{Argv: []string{"echo", "com.a/com.a.S"}}.EnabledServices(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != "com.a/com.a.S" {
		t.Fatalf("got %q", got)
	}

	got, err = CommandSource{Argv: []string{"echo", "null"}}.EnabledServices(context.Background())
	if err != nil || got != "" {
		t.Fatalf("null output: got %q, %v", got, err)
	}

	if _, err := (CommandSource{}).EnabledServices(context.Background()); !errors.Is(err, ErrNoCommand) {
		t.Fatalf("got %v, want ErrNoCommand", err)
	}
}

func TestCommandNavigator(t *testing.T) {
	if err := (CommandNavigator{}).OpenAccessibilitySettings(context.Background()); !errors.Is(err, ErrNoCommand) {
		t.Fatalf("got %v, want ErrNoCommand", err)
	}
	if err := (CommandNavigator{Argv: []string{"/nonexistent/open-settings"}}).OpenAccessibilitySettings(context.Background()); err == nil {
		t.Fatal("expected start failure")
	}
	if err := (CommandNavigator{Argv: []string{"true"}}).OpenAccessibilitySettings(context.Background()); err != nil {
		t.Fatal(err)
	}
}
