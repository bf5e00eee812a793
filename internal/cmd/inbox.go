package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/puttnotify/internal/app"
	"github.com/nhle/puttnotify/internal/desktop"
	"github.com/nhle/puttnotify/internal/stream"
	appsync "github.com/nhle/puttnotify/internal/sync"
)

func inboxCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inbox",
		Short: "Open the interactive notification inbox",
		RunE:  runInbox,
	}
}

func runInbox(cmd *cobra.Command, _ []string) error {
	e, errEnv := newEnv(false)
	if errEnv != nil {
		return errEnv
	}
	defer e.Close()

	if _, err := e.requireSession(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	tray := desktop.NewTray(8)
	bridge := newBridge(ctx, e, tray)

	states := app.NewStateFeed()
	channel := stream.New(e.streamURL(), e.session,
		[]stream.Sink{stream.SinkFunc(e.inbox.Push), bridge},
		stream.WithReconnectDelay(e.cfg.Stream.ReconnectDelay()),
		stream.WithTokenInQuery(e.cfg.Stream.TokenInQuery),
		stream.WithOnState(states.Publish))

	reconciler := appsync.New(e.inbox,
		time.Duration(e.cfg.Display.PollIntervalSec)*time.Second)

	runtime := app.NewRuntime(e.session, e.inbox, channel, e.cfg.Display.PageSize)
	runtime.Start(ctx)
	defer runtime.Stop()

	root := app.New(app.Options{
		Session:    e.session,
		Inbox:      e.inbox,
		Runtime:    runtime,
		Reconciler: reconciler,
		Bridge:     bridge,
		Tray:       tray,
		States:     states,
		PageSize:   e.cfg.Display.PageSize,
		Config:     e.cfg,
		ConfigPath: cfgFile,
		Checker:    e.checkConnection,
	})

	final, errRun := tea.NewProgram(root, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	reconciler.Stop()
	if errRun != nil {
		return fmt.Errorf("running inbox: %w", errRun)
	}

	if m, ok := final.(app.Model); ok && m.QuitMessage() != "" {
		fmt.Fprintln(cmd.OutOrStdout(), m.QuitMessage())
	}

	return nil
}

// newBridge sets up desktop delivery, asking for permission on first use.
// With desktop.enabled off the bridge stays undecided and shows nothing.
func newBridge(ctx context.Context, e *env, notifiers ...desktop.Notifier) *desktop.Bridge {
	bridge := desktop.NewBridge(e.db, desktop.ConfirmPrompter{}, notifiers...)
	if e.cfg.Desktop.Enabled {
		bridge.Init(ctx)
	}

	return bridge
}
