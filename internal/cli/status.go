package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rcliao/state-sync/internal/output"
	"github.com/rcliao/state-sync/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show sync bookkeeping, store sizes and recent history",
		Run:   runStatus,
	}

	cmd.Flags().IntP("limit", "l", 10, "Max history entries")
	cmd.Flags().String("kind", "", "Filter history by kind (sync or import)")

	RootCmd.AddCommand(cmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	kind, _ := cmd.Flags().GetString("kind")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ctx := cmd.Context()
	state, err := s.GetSyncState(ctx)
	if err != nil {
		exitErr("sync state", err)
	}
	stats, err := s.Stats(ctx, getDBPath())
	if err != nil {
		exitErr("stats", err)
	}
	history, err := s.ListHistory(ctx, store.HistoryParams{Kind: kind, Limit: limit})
	if err != nil {
		exitErr("history", err)
	}

	if !textFormat() {
		printJSON(map[string]any{
			"sync":    state,
			"stats":   stats,
			"history": history,
		})
		return
	}

	fmt.Println(output.Title("Sync"))
	fmt.Print(output.FormatSyncState(state))

	fmt.Println()
	fmt.Println(output.Title("Stores"))
	sizes := map[string]string{
		"database": fmt.Sprintf("%s (%s)", stats.DBPath, output.FormatBytes(stats.DBSizeBytes)),
		"history":  strconv.Itoa(stats.HistoryCount) + " entries",
	}
	for _, st := range stats.Stores {
		sizes[st.Key] = output.FormatBytes(int64(st.Bytes)) + ", updated " + st.UpdatedAt
	}
	fmt.Print(output.FormatKeyValues(sizes))

	fmt.Println()
	fmt.Println(output.Title("History"))
	if len(history) == 0 {
		output.Info("no sync or import has run yet")
		return
	}
	for _, e := range history {
		fmt.Println(output.FormatHistoryEntry(e))
	}
}
