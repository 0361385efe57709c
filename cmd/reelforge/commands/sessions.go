package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/reelforge/reelforge/internal/cli/output"
	"github.com/reelforge/reelforge/pkg/config"
	"github.com/reelforge/reelforge/pkg/store/session"
)

var (
	sessionsUser  string
	sessionsLimit int
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect upload sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List upload sessions",
	Long:  `List the most recent upload sessions, optionally filtered by user.`,
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show one upload session in detail",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

func init() {
	sessionsListCmd.Flags().StringVarP(&sessionsUser, "user", "u", "", "filter by user ID")
	sessionsListCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 50, "maximum sessions to list")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
}

func openSessionStore() (*session.Store, error) {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return nil, err
	}
	if err := initLogger(cfg); err != nil {
		return nil, err
	}
	return session.New(&cfg.Database)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	store, err := openSessionStore()
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.ListSessions(cmd.Context(), sessionsUser, sessionsLimit)
	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions found")
		return nil
	}

	table := output.NewTableData("ID", "User", "Filename", "Status", "Progress", "Size", "Updated")
	for _, sess := range sessions {
		table.AddRow(
			sess.ID,
			sess.UserID,
			sess.Filename,
			string(sess.Status),
			fmt.Sprintf("%d%%", sess.Progress()),
			formatBytes(sess.TotalBytes),
			sess.UpdatedAt.Format(time.RFC3339),
		)
	}
	return output.PrintTable(os.Stdout, table)
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	store, err := openSessionStore()
	if err != nil {
		return err
	}
	defer store.Close()

	sess, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	pairs := [][2]string{
		{"ID", sess.ID},
		{"User", sess.UserID},
		{"Filename", sess.Filename},
		{"MIME type", sess.MimeType},
		{"Status", string(sess.Status)},
		{"Received", fmt.Sprintf("%s / %s (%d%%)",
			formatBytes(sess.BytesReceived), formatBytes(sess.TotalBytes), sess.Progress())},
		{"Storage key", sess.StorageKey},
		{"Created", sess.CreatedAt.Format(time.RFC3339)},
		{"Updated", sess.UpdatedAt.Format(time.RFC3339)},
		{"Expires", sess.ExpiresAt.Format(time.RFC3339)},
	}
	if sess.ErrorCode != nil {
		pairs = append(pairs, [2]string{"Error", *sess.ErrorCode})
	}
	if sess.CID != nil {
		pairs = append(pairs, [2]string{"CID", *sess.CID})
	}
	if sess.PlaybackURL != nil {
		pairs = append(pairs, [2]string{"Playback URL", *sess.PlaybackURL})
	}
	return output.KeyValueTable(os.Stdout, pairs)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
