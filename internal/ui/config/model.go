package config

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/puttnotify/internal/model"
	"github.com/nhle/puttnotify/internal/theme"
)

// checkTimeout bounds a connection test.
const checkTimeout = 15 * time.Second

// ConfigMode represents the current state of the settings view.
type ConfigMode int

const (
	ModeSummary        ConfigMode = iota // Show current settings
	ModeForm                             // Edit settings
	ModeValidating                       // Testing connection
	ModeValidateResult                   // Show validation result
)

// ConfigDoneMsg signals the settings view should close.
type ConfigDoneMsg struct{}

// ConfigSavedMsg carries the configuration that was written to disk.
type ConfigSavedMsg struct {
	Config model.AppConfig
}

// ValidateResultMsg carries the result of a connection test.
type ValidateResultMsg struct {
	BaseURL string
	Err     error
}

// configSavedInternalMsg is sent after the file was written.
type configSavedInternalMsg struct {
	cfg model.AppConfig
	err error
}

// Checker tests whether the API at baseURL accepts the current session.
type Checker func(ctx context.Context, baseURL string) error

// Model is the Bubble Tea model for the settings UI.
type Model struct {
	mode    ConfigMode
	cfg     model.AppConfig
	path    string
	checker Checker
	form    *huh.Form

	// Form field values (huh binds to these)
	formBaseURL      string
	formPollInterval string
	formPageSize     string
	formTokenInQuery bool
	formDesktop      bool
	formLogLevel     string

	spinner    spinner.Model
	validURL   string
	validError error
	statusMsg  string
	width      int
	height     int
}

// New creates a settings view for cfg, saved to path.
func New(cfg model.AppConfig, path string, checker Checker, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		mode:    ModeSummary,
		cfg:     cfg,
		path:    path,
		checker: checker,
		spinner: sp,
		width:   width,
		height:  height,
	}
}

// Init resets the view to the summary.
func (m Model) Init() tea.Cmd {
	return nil
}

// Config returns the settings currently shown.
func (m Model) Config() model.AppConfig {
	return m.cfg
}

// Mode returns the current mode.
func (m Model) Mode() ConfigMode {
	return m.mode
}

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case configSavedInternalMsg:
		m.mode = ModeSummary
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error saving settings: %v", msg.err)
			return m, nil
		}
		m.cfg = msg.cfg
		m.statusMsg = "Settings saved. Connection changes apply on the next start."
		saved := msg.cfg
		return m, func() tea.Msg { return ConfigSavedMsg{Config: saved} }

	case ValidateResultMsg:
		m.validURL = msg.BaseURL
		m.validError = msg.Err
		m.mode = ModeValidateResult
		return m, nil

	case spinner.TickMsg:
		if m.mode == ModeValidating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	if m.mode == ModeForm {
		return m.updateForm(msg)
	}
	return m, nil
}

// handleKeyMsg processes key messages based on the current mode.
func (m Model) handleKeyMsg(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch m.mode {
	case ModeSummary:
		switch msg.String() {
		case "e", "enter":
			m.form = m.buildForm()
			m.mode = ModeForm
			m.statusMsg = ""
			return m, m.form.Init()
		case "t":
			return m.startValidation(m.cfg.API.BaseURL)
		case "esc":
			return m, func() tea.Msg { return ConfigDoneMsg{} }
		}
		return m, nil

	case ModeForm:
		return m.updateForm(msg)

	case ModeValidating:
		// Only allow escape during validation
		if msg.String() == "esc" {
			m.mode = ModeSummary
		}
		return m, nil

	case ModeValidateResult:
		m.mode = ModeSummary
		return m, nil
	}
	return m, nil
}

func (m *Model) buildForm() *huh.Form {
	m.formBaseURL = m.cfg.API.BaseURL
	m.formPollInterval = strconv.Itoa(m.cfg.Display.PollIntervalSec)
	m.formPageSize = strconv.Itoa(m.cfg.Display.PageSize)
	m.formTokenInQuery = m.cfg.Stream.TokenInQuery
	m.formDesktop = m.cfg.Desktop.Enabled
	m.formLogLevel = m.cfg.Log.Level

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API URL").
				Description("Proof of Putt API root, including /api").
				Placeholder("https://proofofputt.example/api").
				Value(&m.formBaseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Badge refresh (seconds)").
				Description("0 turns periodic refresh off").
				Value(&m.formPollInterval).
				Validate(validateNumber(0)),
			huh.NewInput().
				Title("Page size").
				Value(&m.formPageSize).
				Validate(validateNumber(1)),
			huh.NewConfirm().
				Title("Send token in stream URL").
				Description("Only for proxies that strip the Authorization header").
				Value(&m.formTokenInQuery),
			huh.NewConfirm().
				Title("Desktop notifications").
				Value(&m.formDesktop),
			huh.NewSelect[string]().
				Title("Log level").
				Options(huh.NewOptions("debug", "info", "warn", "error")...).
				Value(&m.formLogLevel),
		),
	).WithWidth(m.formWidth())
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m, m.save(m.applyForm())
	}
	if m.form.State == huh.StateAborted {
		m.mode = ModeSummary
		return m, nil
	}

	return m, cmd
}

// applyForm returns the settings with the form values applied.
func (m Model) applyForm() model.AppConfig {
	cfg := m.cfg
	cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(m.formBaseURL), "/")
	cfg.Display.PollIntervalSec, _ = strconv.Atoi(strings.TrimSpace(m.formPollInterval))
	cfg.Display.PageSize, _ = strconv.Atoi(strings.TrimSpace(m.formPageSize))
	cfg.Stream.TokenInQuery = m.formTokenInQuery
	cfg.Desktop.Enabled = m.formDesktop
	cfg.Log.Level = m.formLogLevel
	return cfg
}

func (m Model) save(cfg model.AppConfig) tea.Cmd {
	path := m.path
	return func() tea.Msg {
		return configSavedInternalMsg{cfg: cfg, err: model.SaveConfig(path, &cfg)}
	}
}

func (m Model) startValidation(baseURL string) (Model, tea.Cmd) {
	if m.checker == nil {
		return m, nil
	}

	m.mode = ModeValidating
	check := m.checker

	return m, tea.Batch(
		m.spinner.Tick,
		func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
			defer cancel()
			return ValidateResultMsg{BaseURL: baseURL, Err: check(ctx, baseURL)}
		},
	)
}

// --- View ---

// View renders the settings UI based on the current mode.
func (m Model) View() string {
	switch m.mode {
	case ModeSummary:
		return m.viewSummary()
	case ModeForm:
		return m.viewForm()
	case ModeValidating:
		return m.viewValidating()
	case ModeValidateResult:
		return m.viewValidateResult()
	default:
		return ""
	}
}

func (m Model) viewSummary() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	b.WriteString(titleStyle.Render("Settings"))
	b.WriteString("\n\n")

	labelStyle := lipgloss.NewStyle().Foreground(theme.ColorGray).Width(24)
	rows := [][2]string{
		{"API URL", m.cfg.API.BaseURL},
		{"Stream path", m.cfg.Stream.Path},
		{"Token in stream URL", onOff(m.cfg.Stream.TokenInQuery)},
		{"Reconnect delay", m.cfg.Stream.ReconnectDelay().String()},
		{"Badge refresh", refreshLabel(m.cfg.Display.PollIntervalSec)},
		{"Page size", strconv.Itoa(m.cfg.Display.PageSize)},
		{"Desktop notifications", onOff(m.cfg.Desktop.Enabled)},
		{"Log level", m.cfg.Log.Level},
		{"Config file", m.path},
	}
	for _, row := range rows {
		b.WriteString(labelStyle.Render(row[0]))
		b.WriteString(row[1])
		b.WriteString("\n")
	}

	if m.statusMsg != "" {
		b.WriteString("\n")
		statusStyle := lipgloss.NewStyle().
			Foreground(theme.ColorYellow).
			Italic(true)
		b.WriteString(statusStyle.Render(m.statusMsg))
	}

	b.WriteString("\n\n")
	hintStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	b.WriteString(hintStyle.Render("e edit | t test connection | esc back"))

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(b.String())
}

func (m Model) viewForm() string {
	if m.form == nil {
		return ""
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(m.form.View())
}

func (m Model) viewValidating() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	content := fmt.Sprintf(
		"%s Testing connection...\n\nPress esc to cancel.",
		m.spinner.View(),
	)

	return style.Render(content)
}

func (m Model) viewValidateResult() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	var result string
	if m.validError != nil {
		result = lipgloss.NewStyle().Foreground(theme.ColorRed).Render(
			fmt.Sprintf("Could not reach %s\n\n%v", m.validURL, m.validError),
		)
	} else {
		result = lipgloss.NewStyle().Foreground(theme.ColorGreen).Render(
			fmt.Sprintf("Connected to %s", m.validURL),
		)
	}

	hint := lipgloss.NewStyle().Foreground(theme.ColorGray).Render("Press any key to continue.")

	return style.Render(result + "\n\n" + hint)
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(m.formWidth())
	}
}

func (m Model) formWidth() int {
	return max(m.width-4, 20)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func refreshLabel(seconds int) string {
	if seconds <= 0 {
		return "off"
	}
	return (time.Duration(seconds) * time.Second).String()
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., https://example.com/api)")
	}
	return nil
}

func validateNumber(minimum int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("must be a number")
		}
		if n < minimum {
			return fmt.Errorf("must be at least %d", minimum)
		}
		return nil
	}
}
