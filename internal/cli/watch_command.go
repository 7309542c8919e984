package cli

import (
	"context"
	"errors"
	"flag"
	"strings"
	"time"

	"github.com/jmagar/nugs-dl/internal/config"
	"github.com/jmagar/nugs-dl/internal/logger"
	"github.com/jmagar/nugs-dl/internal/queuesync"
	"github.com/jmagar/nugs-dl/pkg/api"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type watchMode int

const (
	watchModeLoading watchMode = iota
	watchModeBrowse
	watchModeDeleteConfirm
)

type watchModel struct {
	engine  *queuesync.Engine
	changes <-chan struct{}
	server  string

	jobs   []api.DownloadJob
	cursor int
	width  int
	height int
	mode   watchMode

	spin spinner.Model
	bar  progress.Model

	loadErr           error
	confirmDeleteID   string
	confirmDeleteName string
	statusMessage     string
	fatalErr          error
}

type watchActivatedMsg struct {
	err error
}

type watchStoreChangedMsg struct{}

type watchTickMsg time.Time

type watchRefreshedMsg struct {
	err error
}

type watchRemoveMsg struct {
	jobID string
	err   error
}

type watchShutdownMsg struct{}

func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultSettingsPath(), "settings file path")
	server := fs.String("server", "", "server URL override")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !stdinIsTTY() {
		return errors.New("watch requires an interactive terminal (TTY)")
	}

	settings, err := resolveSettings(*configPath, *server)
	if err != nil {
		return err
	}
	client, err := newClient(settings)
	if err != nil {
		return err
	}
	eng, err := queuesync.New(queuesync.Options{
		Client:         client,
		ReconnectDelay: settings.ReconnectDelay(),
		Logger:         logger.Discard(), // stderr would fight the TUI
	})
	if err != nil {
		return err
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = watchSpinnerStyle

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 30

	m := watchModel{
		engine:  eng,
		changes: eng.Store().Subscribe(),
		server:  settings.ServerURL,
		mode:    watchModeLoading,
		spin:    sp,
		bar:     bar,
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	finalModel, err := p.Run()
	eng.Deactivate()
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "tty") {
			return errors.New("watch requires an interactive terminal (TTY)")
		}
		return err
	}
	if fm, ok := finalModel.(watchModel); ok {
		return fm.fatalErr
	}
	return nil
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(
		m.spin.Tick,
		activateEngineCmd(m.engine),
		waitStoreChangeCmd(m.changes),
		watchTickCmd(),
	)
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = clampInt(m.width-50, 10, 40)
		return m, nil

	case watchActivatedMsg:
		if msg.err != nil {
			m.loadErr = msg.err
			m.mode = watchModeBrowse
			return m, nil
		}
		m.loadErr = nil
		m.mode = watchModeBrowse
		m.jobs = m.engine.Store().Jobs()
		m.clampCursor()
		return m, nil

	case watchStoreChangedMsg:
		m.jobs = m.engine.Store().Jobs()
		m.clampCursor()
		return m, waitStoreChangeCmd(m.changes)

	case watchRefreshedMsg:
		if msg.err != nil {
			m.statusMessage = "error: " + msg.err.Error()
			return m, nil
		}
		m.jobs = m.engine.Store().Jobs()
		m.clampCursor()
		m.statusMessage = "queue refreshed"
		return m, nil

	case watchTickMsg:
		return m, watchTickCmd()

	case watchRemoveMsg:
		if msg.err != nil {
			m.statusMessage = "error: " + msg.err.Error()
			return m, nil
		}
		m.statusMessage = "removed job " + msg.jobID
		return m, nil

	case watchShutdownMsg:
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.ResumeMsg:
		// Coming back from suspension: reconnect now instead of waiting
		// out the remaining delay.
		m.engine.Wake()
		return m, nil
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch m.mode {
	case watchModeDeleteConfirm:
		return m.updateDeleteConfirm(keyMsg)
	case watchModeLoading:
		switch keyMsg.String() {
		case "ctrl+c", "q":
			return m, shutdownEngineCmd(m.engine)
		}
		return m, nil
	default:
		return m.updateBrowse(keyMsg)
	}
}

func (m watchModel) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, shutdownEngineCmd(m.engine)
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		if m.cursor < len(m.jobs)-1 {
			m.cursor++
		}
		return m, nil
	case "r":
		m.statusMessage = "refreshing..."
		if m.loadErr != nil {
			m.loadErr = nil
			m.mode = watchModeLoading
			return m, activateEngineCmd(m.engine)
		}
		return m, refreshEngineCmd(m.engine)
	case "d":
		if len(m.jobs) == 0 || m.cursor >= len(m.jobs) {
			m.statusMessage = "select a job to remove"
			return m, nil
		}
		selected := m.jobs[m.cursor]
		m.mode = watchModeDeleteConfirm
		m.confirmDeleteID = selected.ID
		m.confirmDeleteName = jobLabel(selected)
		return m, nil
	}
	return m, nil
}

func (m watchModel) updateDeleteConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc", "n":
		m.mode = watchModeBrowse
		m.confirmDeleteID = ""
		m.confirmDeleteName = ""
		m.statusMessage = "remove cancelled"
		return m, nil
	case "y", "enter":
		id := m.confirmDeleteID
		m.mode = watchModeBrowse
		m.confirmDeleteID = ""
		m.confirmDeleteName = ""
		if id == "" {
			return m, nil
		}
		return m, removeJobCmd(m.engine, id)
	}
	return m, nil
}

func (m *watchModel) clampCursor() {
	if m.cursor < 0 {
		m.cursor = 0
	}
	if len(m.jobs) == 0 {
		m.cursor = 0
	} else if m.cursor > len(m.jobs)-1 {
		m.cursor = len(m.jobs) - 1
	}
}

func activateEngineCmd(eng *queuesync.Engine) tea.Cmd {
	return func() tea.Msg {
		return watchActivatedMsg{err: eng.Activate(context.Background())}
	}
}

func refreshEngineCmd(eng *queuesync.Engine) tea.Cmd {
	return func() tea.Msg {
		return watchRefreshedMsg{err: eng.Refresh(context.Background())}
	}
}

func removeJobCmd(eng *queuesync.Engine, jobID string) tea.Cmd {
	return func() tea.Msg {
		return watchRemoveMsg{jobID: jobID, err: eng.RemoveJob(context.Background(), jobID)}
	}
}

func shutdownEngineCmd(eng *queuesync.Engine) tea.Cmd {
	return func() tea.Msg {
		eng.Deactivate()
		return watchShutdownMsg{}
	}
}

func waitStoreChangeCmd(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-changes
		return watchStoreChangedMsg{}
	}
}

func watchTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}
