package media

import (
	_ "embed"
	"fmt"
	"os"
	"slices"

	"github.com/pelletier/go-toml/v2"
)

//go:embed players.toml
var playersTOML []byte

// PlayerDefinition describes how to invoke one player.
type PlayerDefinition struct {
	Description string   `toml:"description"`
	Platforms   []string `toml:"platforms"`
	Args        []string `toml:"args,omitempty"`
	ArgsDarwin  []string `toml:"args_darwin,omitempty"`
	ArgsLinux   []string `toml:"args_linux,omitempty"`
	ArgsWindows []string `toml:"args_windows,omitempty"`
}

type playersFile struct {
	Order   []string                    `toml:"order"`
	Players map[string]PlayerDefinition `toml:"players"`
}

// PlayerRegistry holds the built-in player definitions plus any overrides.
type PlayerRegistry struct {
	order   []string
	players map[string]PlayerDefinition
}

// NewPlayerRegistry loads the built-in definitions and, when overridePath is
// set, merges the definitions from that file over them.
func NewPlayerRegistry(overridePath string) (*PlayerRegistry, error) {
	var builtin playersFile
	if err := toml.Unmarshal(playersTOML, &builtin); err != nil {
		return nil, fmt.Errorf("parsing players.toml: %w", err)
	}
	r := &PlayerRegistry{order: builtin.Order, players: builtin.Players}

	if overridePath == "" {
		return r, nil
	}
	data, err := os.ReadFile(overridePath)
	if err != nil {
		return nil, fmt.Errorf("reading player definitions: %w", err)
	}
	var user playersFile
	if err := toml.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", overridePath, err)
	}
	for name, def := range user.Players {
		r.players[name] = def
	}
	if len(user.Order) > 0 {
		r.order = append(slices.Clone(user.Order), r.order...)
	}
	return r, nil
}

// Supports reports whether name is defined for goos. Unknown players are
// assumed to work anywhere.
func (r *PlayerRegistry) Supports(name, goos string) bool {
	def, ok := r.players[name]
	if !ok {
		return true
	}
	return slices.Contains(def.Platforms, goos)
}

// Args returns the arguments placed before the URL for name on goos.
func (r *PlayerRegistry) Args(name, goos string) []string {
	def, ok := r.players[name]
	if !ok {
		return nil
	}
	var platform []string
	switch goos {
	case "darwin":
		platform = def.ArgsDarwin
	case "linux":
		platform = def.ArgsLinux
	case "windows":
		platform = def.ArgsWindows
	}
	if len(platform) > 0 {
		return slices.Clone(platform)
	}
	return slices.Clone(def.Args)
}

// Candidates lists players to try on goos, in preference order, without
// duplicates.
func (r *PlayerRegistry) Candidates(goos string) []string {
	seen := make(map[string]bool, len(r.order))
	var out []string
	for _, name := range r.order {
		if seen[name] || !r.Supports(name, goos) {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
