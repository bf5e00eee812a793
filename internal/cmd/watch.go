package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/puttnotify/internal/app"
	"github.com/nhle/puttnotify/internal/desktop"
	"github.com/nhle/puttnotify/internal/log"
	"github.com/nhle/puttnotify/internal/model"
	"github.com/nhle/puttnotify/internal/stream"
	appsync "github.com/nhle/puttnotify/internal/sync"
	"github.com/nhle/puttnotify/internal/theme"
)

func watchCmd() *cobra.Command {
	var quiet bool

	command := &cobra.Command{
		Use:   "watch",
		Short: "Follow the live notification stream",
		Long:  `Prints notifications as they arrive and raises a terminal notification for each one. Stop with Ctrl+C.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, errEnv := newEnv(true)
			if errEnv != nil {
				return errEnv
			}
			defer e.Close()

			if _, err := e.requireSession(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()

			var notifiers []desktop.Notifier
			if !quiet {
				notifiers = append(notifiers, desktop.NewTerminal(os.Stderr))
			}
			bridge := newBridge(ctx, e, notifiers...)

			if err := e.fetch(ctx); err != nil {
				return err
			}
			fmt.Fprintf(out, "%d unread, waiting for notifications...\n", e.inbox.Snapshot().UnreadCount)

			channel := stream.New(e.streamURL(), e.session,
				[]stream.Sink{stream.SinkFunc(e.inbox.Push), printer(out), bridge},
				stream.WithReconnectDelay(e.cfg.Stream.ReconnectDelay()),
				stream.WithTokenInQuery(e.cfg.Stream.TokenInQuery),
				stream.WithOnState(func(state stream.State) {
					slog.Info("Notification stream", slog.String("state", state.String()))
				}))

			runtime := app.NewRuntime(e.session, e.inbox, channel, e.cfg.Display.PageSize)
			reconciler := appsync.New(e.inbox, time.Duration(e.cfg.Display.PollIntervalSec)*time.Second)

			group, groupCtx := errgroup.WithContext(ctx)

			group.Go(func() error {
				runtime.Start(groupCtx)
				<-groupCtx.Done()
				runtime.Stop()
				reconciler.Stop()
				return nil
			})

			group.Go(func() error {
				return e.reconcile(groupCtx, reconciler)
			})

			if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			return nil
		},
	}

	command.Flags().BoolVar(&quiet, "quiet", false, "do not raise terminal notifications")

	return command
}

// reconcile drains the badge reconciler until it stops or the session
// is rejected.
func (e *env) reconcile(ctx context.Context, reconciler *appsync.Reconciler) error {
	wait := reconciler.Start()
	for wait != nil {
		switch msg := wait().(type) {
		case nil:
			return nil
		case appsync.AuthErrorMsg:
			if errClear := e.session.Clear(); errClear != nil {
				slog.Error("Failed to clear session", log.ErrAttr(errClear))
			}
			return errors.New(msg.Message)
		case appsync.BadgeMsg:
			if msg.Error != nil {
				slog.Warn("Unread count refresh failed", log.ErrAttr(msg.Error))
			} else {
				slog.Debug("Unread count refreshed", slog.Int("unread", msg.UnreadCount))
			}
		}

		if ctx.Err() != nil {
			return nil
		}
		wait = reconciler.Wait()
	}

	return nil
}

// printer writes each pushed notification as one line.
func printer(w io.Writer) stream.Sink {
	return stream.SinkFunc(func(n model.Notification) {
		at := n.CreatedAt
		if at.IsZero() {
			at = time.Now()
		}
		fmt.Fprintf(w, "%s  %-11s %s: %s\n",
			at.Local().Format("15:04:05"), theme.KindLabel(n.Kind), n.Title, n.Message)
	})
}
