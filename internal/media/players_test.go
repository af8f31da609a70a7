package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPlayerRegistry_Builtin(t *testing.T) {
	r, err := NewPlayerRegistry("")
	require.NoError(t, err)

	assert.Equal(t, []string{"mpv", "vlc", "ffplay", "xdg-open"}, r.Candidates("linux"))
	assert.Equal(t, []string{"mpv", "vlc", "ffplay", "open"}, r.Candidates("darwin"))
	assert.Equal(t, []string{"mpv", "vlc", "ffplay", "rundll32"}, r.Candidates("windows"))
}

func TestPlayerRegistry_Args(t *testing.T) {
	r, err := NewPlayerRegistry("")
	require.NoError(t, err)

	assert.Equal(t, []string{"--intf", "dummy", "--play-and-exit"}, r.Args("vlc", "linux"))
	assert.Equal(t, []string{"--play-and-exit"}, r.Args("vlc", "darwin"))
	assert.Empty(t, r.Args("xdg-open", "linux"))
	assert.Nil(t, r.Args("unknown", "linux"))

	// callers may append to the result
	args := r.Args("mpv", "linux")
	_ = append(args, "x")
	assert.Equal(t, []string{"--no-video", "--force-window=no"}, r.Args("mpv", "linux"))
}

func TestPlayerRegistry_Supports(t *testing.T) {
	r, err := NewPlayerRegistry("")
	require.NoError(t, err)

	assert.True(t, r.Supports("open", "darwin"))
	assert.False(t, r.Supports("open", "linux"))
	assert.True(t, r.Supports("custom-player", "linux"), "unknown players are not filtered")
}

func TestNewPlayerRegistry_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "players.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
order = ["mplayer", "mpv"]

[players.mplayer]
description = "MPlayer"
platforms = ["linux"]
args = ["-novideo"]

[players.mpv]
description = "mpv with a volume"
platforms = ["linux"]
args = ["--no-video", "--volume=50"]
`), 0o644))

	r, err := NewPlayerRegistry(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"mplayer", "mpv", "vlc", "ffplay", "xdg-open"}, r.Candidates("linux"))
	assert.Equal(t, []string{"-novideo"}, r.Args("mplayer", "linux"))
	assert.Equal(t, []string{"--no-video", "--volume=50"}, r.Args("mpv", "linux"))
	assert.False(t, r.Supports("mpv", "darwin"), "override replaces the whole definition")
}

func TestNewPlayerRegistry_OverrideErrors(t *testing.T) {
	_, err := NewPlayerRegistry(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("[players.mpv\nargs = "), 0o644))
	_, err = NewPlayerRegistry(path)
	assert.Error(t, err)
}
