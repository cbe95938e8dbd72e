package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/state-sync/internal/output"
)

func init() {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle",
		Long: "Fetch the remote state, merge it into the local stores, persist, and push the result back. " +
			"With upstash.force_sync set the merge is skipped and force_direction decides which side wins.",
		Run: runSync,
	}

	RootCmd.AddCommand(cmd)
}

func runSync(cmd *cobra.Command, args []string) {
	log := newLogger()
	defer log.Sync()
	cfg := loadConfig(log)
	if !cfg.CloudSyncReady() {
		exitErr("sync", fmt.Errorf("%s credentials are incomplete (see 'state-sync config set')", cfg.Provider))
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	res, err := newEngine(s, cfg, log, nil).Sync(cmd.Context())
	if err != nil {
		exitErr("sync", err)
	}

	if textFormat() {
		output.Success("synced with %s %s, pushed %s", res.Provider, output.FormatOutcome(res.Outcome), output.FormatBytes(int64(res.PushedBytes)))
		return
	}
	printJSON(res)
}
