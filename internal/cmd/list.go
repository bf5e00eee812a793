package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/nhle/puttnotify/internal/api"
	"github.com/nhle/puttnotify/internal/log"
	"github.com/nhle/puttnotify/internal/model"
	"github.com/nhle/puttnotify/internal/notify"
	"github.com/nhle/puttnotify/internal/theme"
	"github.com/nhle/puttnotify/internal/ui/inbox"
)

func listCmd() *cobra.Command {
	var (
		limit   int
		offset  int
		unread  bool
		offline bool
	)

	command := &cobra.Command{
		Use:   "list",
		Short: "Print your notifications",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, errEnv := newEnv(true)
			if errEnv != nil {
				return errEnv
			}
			defer e.Close()

			if _, err := e.requireSession(); err != nil {
				return err
			}

			cached, err := loadPage(cmd.Context(), e.inbox, limit, offset, offline)
			if err := e.checkAuth(err); err != nil {
				return err
			}
			if cached && !offline {
				fmt.Fprintln(cmd.ErrOrStderr(), "Server unreachable, showing cached notifications")
			}

			state := e.inbox.Snapshot()
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(state, unread))
			fmt.Fprintf(cmd.OutOrStdout(), "%d unread\n", state.UnreadCount)

			return nil
		},
	}

	command.Flags().IntVar(&limit, "limit", notify.DefaultPageSize, "page size")
	command.Flags().IntVar(&offset, "offset", 0, "page offset")
	command.Flags().BoolVar(&unread, "unread", false, "only show unread notifications")
	command.Flags().BoolVar(&offline, "offline", false, "show the cached inbox without contacting the server")

	return command
}

// loadPage fills inbox from the server, or from the cache when offline is
// set or the server cannot be reached. It reports whether the cache was used.
func loadPage(ctx context.Context, inbox *notify.Store, limit, offset int, offline bool) (bool, error) {
	if !offline {
		err := inbox.FetchAll(ctx, limit, offset)
		if err == nil || !api.IsTransport(err) || ctx.Err() != nil {
			return false, err
		}
		slog.Warn("Falling back to cached notifications", log.ErrAttr(err))
	}

	_, err := inbox.Restore(ctx)
	return true, err
}

func renderTable(state notify.State, unreadOnly bool) string {
	rows := make([][]string, 0, len(state.Notifications))
	for _, n := range state.Notifications {
		if unreadOnly && n.Read {
			continue
		}
		rows = append(rows, row(n))
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
		Headers("", "ID", "KIND", "TITLE", "AGE").
		Rows(rows...).
		StyleFunc(func(r, _ int) lipgloss.Style {
			if r == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		String()
}

func row(n model.Notification) []string {
	marker := ""
	if !n.Read {
		marker = "●"
	}
	return []string{
		marker,
		strconv.FormatInt(n.ID, 10),
		theme.KindLabel(n.Kind),
		n.Title,
		inbox.Age(n.CreatedAt),
	}
}
