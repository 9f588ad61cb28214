// Package settings reads and opens the OS accessibility configuration the
// foreground observer depends on.
package settings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrNoCommand is returned when a command-backed source or navigator has
// nothing to run.
var ErrNoCommand = errors.New("settings: no command configured")

// Source returns the raw enabled-services string, entries separated by ':'.
// An empty string means no service is enabled.
type Source interface {
	EnabledServices(ctx context.Context) (string, error)
}

// Navigator opens the surface where the user authorizes the observer.
type Navigator interface {
	OpenAccessibilitySettings(ctx context.Context) error
}

// FileSource reads the enabled-services string from a file.
type FileSource struct {
	Path string
}

func (s FileSource) EnabledServices(context.Context) (string, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// CommandSource runs a command and treats its stdout as the enabled-services
// string, e.g. adb shell settings get secure enabled_accessibility_services.
type CommandSource struct {
	Argv []string
}

func (s CommandSource) EnabledServices(ctx context.Context) (string, error) {
	if len(s.Argv) == 0 {
		return "", ErrNoCommand
	}
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, s.Argv[0], s.Argv[1:]...)
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("settings: %s: %w", s.Argv[0], err)
	}
	v := strings.TrimSpace(out.String())
	// settings get prints "null" for unset keys
	if v == "null" {
		return "", nil
	}
	return v, nil
}

// CommandNavigator starts a command and does not wait for it to finish.
type CommandNavigator struct {
	Argv []string
}

func (n CommandNavigator) OpenAccessibilitySettings(ctx context.Context) error {
	if len(n.Argv) == 0 {
		return ErrNoCommand
	}
	cmd := exec.Command(n.Argv[0], n.Argv[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("settings: open accessibility settings: %w", err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// IsEnabled reports whether serviceID appears in the ':'-separated list,
// ignoring case.
func IsEnabled(enabled, serviceID string) bool {
	if enabled == "" || serviceID == "" {
		return false
	}
	for _, s := range strings.Split(enabled, ":") {
		if strings.EqualFold(s, serviceID) {
			return true
		}
	}
	return false
}
