// Package media hands episode audio to an installed player.
package media

import (
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strings"

	"github.com/pders01/podrelay/internal/config"
	"github.com/pders01/podrelay/internal/debuglog"
)

// ErrNoPlayer is returned when no configured or known player is installed.
var ErrNoPlayer = errors.New("no audio player found")

type Launcher struct {
	registry  *PlayerRegistry
	preferred []string
	goos      string
	lookPath  func(string) (string, error)
	start     func(*exec.Cmd) error
}

func NewLauncher(cfg config.PlayerConfig) (*Launcher, error) {
	registry, err := NewPlayerRegistry(cfg.DefinitionsFile)
	if err != nil {
		return nil, err
	}
	return &Launcher{
		registry:  registry,
		preferred: cfg.Preferred,
		goos:      runtime.GOOS,
		lookPath:  exec.LookPath,
		start:     startDetached,
	}, nil
}

// Resolve returns the first installed player, trying configured
// preferences before the built-in order.
func (l *Launcher) Resolve() (string, error) {
	candidates := append(append([]string{}, l.preferred...), l.registry.Candidates(l.goos)...)
	for _, name := range candidates {
		name = strings.TrimSpace(name)
		if name == "" || !l.registry.Supports(name, l.goos) {
			continue
		}
		if _, err := l.lookPath(name); err == nil {
			return name, nil
		}
	}
	return "", ErrNoPlayer
}

// Command builds the player invocation for audioURL.
func (l *Launcher) Command(audioURL string) (*exec.Cmd, error) {
	u, err := url.Parse(strings.TrimSpace(audioURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("not a playable URL: %q", audioURL)
	}

	name, err := l.Resolve()
	if err != nil {
		return nil, err
	}
	args := append(l.registry.Args(name, l.goos), u.String())
	return exec.Command(name, args...), nil
}

// Play starts a player for audioURL without waiting for it to finish and
// returns the player's name.
func (l *Launcher) Play(audioURL string) (string, error) {
	cmd, err := l.Command(audioURL)
	if err != nil {
		return "", err
	}
	name := cmd.Args[0]
	if err := l.start(cmd); err != nil {
		return "", fmt.Errorf("failed to start %s: %w", name, err)
	}
	debuglog.Infof("Playing %s with %s", audioURL, name)
	return name, nil
}

func startDetached(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}
