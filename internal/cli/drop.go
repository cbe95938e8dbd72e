package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/state-sync/internal/config"
	"github.com/rcliao/state-sync/internal/output"
	"github.com/rcliao/state-sync/internal/remote"
)

func init() {
	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Delete every remote key of the configured Upstash store",
		Long:  "Maintenance only: deletes all keys under the store key prefix. Requires --yes.",
		Run:   runDrop,
	}

	cmd.Flags().Bool("yes", false, "Confirm deletion")

	RootCmd.AddCommand(cmd)
}

func runDrop(cmd *cobra.Command, args []string) {
	yes, _ := cmd.Flags().GetBool("yes")
	if !yes {
		exitErr("drop", errors.New("refusing to delete remote keys without --yes"))
	}

	log := newLogger()
	defer log.Sync()
	cfg := loadConfig(log)
	if cfg.Provider != config.ProviderUpstash {
		exitErr("drop", fmt.Errorf("drop needs the upstash provider, configured provider is %s", cfg.Provider))
	}

	client, err := remote.Open(cfg, log)
	if err != nil {
		exitErr("create remote client", err)
	}
	upstash, ok := client.(*remote.Upstash)
	if !ok {
		exitErr("drop", fmt.Errorf("unexpected client type %T", client))
	}

	deleted, err := upstash.DropAll(cmd.Context())
	if err != nil {
		exitErr("drop", err)
	}

	if textFormat() {
		output.Success("deleted %d keys under %s*", deleted, upstash.StoreKey())
		return
	}
	printJSON(map[string]any{"ok": true, "store_key": upstash.StoreKey(), "deleted": deleted})
}
