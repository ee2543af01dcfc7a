package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serial-app/internal/session"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	s, err := LoadFrom(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), s)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	want := Defaults()
	want.WriteTimeoutMS = 250
	want.LogLevel = "debug"

	require.NoError(t, SaveTo(path, want))
	got, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadFillsMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"inbox_capacity": 16, "read_timeout_ms": -1}`), 0644))

	s, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 16, s.InboxCapacity)
	assert.Equal(t, Defaults().ReadTimeoutMS, s.ReadTimeoutMS)
	assert.Equal(t, "info", s.LogLevel)
}

func TestLoadBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0644))

	s, err := LoadFrom(path)
	require.Error(t, err)
	assert.Equal(t, Defaults(), s)
}

func TestSessionOptions(t *testing.T) {
	assert.Equal(t, session.DefaultOptions(), Defaults().SessionOptions())

	s := Defaults()
	s.CloseTimeoutMS = 750
	assert.Equal(t, 750*time.Millisecond, s.SessionOptions().CloseTimeout)
}
