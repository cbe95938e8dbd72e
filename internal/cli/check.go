package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/state-sync/internal/output"
	"github.com/rcliao/state-sync/internal/remote"
)

func init() {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that the remote backend is reachable",
		Run:   runCheck,
	}

	RootCmd.AddCommand(cmd)
}

func runCheck(cmd *cobra.Command, args []string) {
	log := newLogger()
	defer log.Sync()
	cfg := loadConfig(log)

	client, err := remote.Open(cfg, log)
	if err != nil {
		exitErr("create remote client", err)
	}
	ok := client.Check(cmd.Context())

	if textFormat() {
		if ok {
			output.Success("%s backend is reachable", cfg.Provider)
		} else {
			output.Error("%s backend is not reachable", cfg.Provider)
		}
		return
	}
	printJSON(map[string]any{"ok": ok, "provider": cfg.Provider})
}
