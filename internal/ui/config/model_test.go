package config

import (
	"errors"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/nhle/puttnotify/internal/model"
)

func testConfig(t *testing.T) (model.AppConfig, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := model.LoadConfig(path)
	require.NoError(t, err)

	return *cfg, path
}

func TestValidators(t *testing.T) {
	t.Parallel()

	require.NoError(t, validateURL("https://proofofputt.example/api"))
	require.Error(t, validateURL(""))
	require.Error(t, validateURL("proofofputt.example"))

	require.NoError(t, validateNumber(0)("0"))
	require.Error(t, validateNumber(1)("0"))
	require.Error(t, validateNumber(0)("soon"))
}

func TestSaveWritesConfig(t *testing.T) {
	t.Parallel()

	cfg, path := testConfig(t)
	m := New(cfg, path, nil, 80, 24)

	m.formBaseURL = " https://proofofputt.example/api/ "
	m.formPollInterval = "30"
	m.formPageSize = "50"
	m.formDesktop = false
	m.formLogLevel = "debug"

	updated := m.applyForm()
	require.Equal(t, "https://proofofputt.example/api", updated.API.BaseURL)
	require.Equal(t, 30, updated.Display.PollIntervalSec)
	require.Equal(t, 50, updated.Display.PageSize)

	m, cmd := m.Update(m.save(updated)())
	require.NotNil(t, cmd)
	require.Equal(t, ModeSummary, m.Mode())

	saved, ok := cmd().(ConfigSavedMsg)
	require.True(t, ok)
	require.Equal(t, 50, saved.Config.Display.PageSize)

	reloaded, err := model.LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "https://proofofputt.example/api", reloaded.API.BaseURL)
	require.Equal(t, 50, reloaded.Display.PageSize)
	require.False(t, reloaded.Desktop.Enabled)
}

func TestValidationResult(t *testing.T) {
	t.Parallel()

	cfg, path := testConfig(t)
	m := New(cfg, path, nil, 80, 24)

	m, _ = m.Update(ValidateResultMsg{BaseURL: cfg.API.BaseURL})
	require.Equal(t, ModeValidateResult, m.Mode())
	require.Contains(t, m.View(), "Connected to")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	require.Equal(t, ModeSummary, m.Mode())

	m, _ = m.Update(ValidateResultMsg{BaseURL: cfg.API.BaseURL, Err: errors.New("connection refused")})
	require.Contains(t, m.View(), "connection refused")
}

func TestSummaryKeys(t *testing.T) {
	t.Parallel()

	cfg, path := testConfig(t)
	m := New(cfg, path, nil, 80, 24)
	require.Contains(t, m.View(), cfg.API.BaseURL)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.Equal(t, ConfigDoneMsg{}, cmd())

	// Without a checker the connection test is unavailable.
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("t")})
	require.Equal(t, ModeSummary, m.Mode())
}
