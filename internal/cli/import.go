package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/state-sync/internal/output"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Import a backup into the local stores",
		Long: "Import a backup produced by export (or the web app) from a file, or stdin with '-'. " +
			"The backup is merged into the local stores unless --force is given, in which case every store " +
			"it contains replaces the local one.",
		Args: cobra.ExactArgs(1),
		Run:  runImport,
	}

	cmd.Flags().Bool("force", false, "Replace local stores instead of merging (default: upstash.force_sync)")

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	log := newLogger()
	defer log.Sync()
	cfg := loadConfig(log)

	force := cfg.ForceSync()
	if cmd.Flags().Changed("force") {
		force, _ = cmd.Flags().GetBool("force")
	}

	var data []byte
	var err error
	if args[0] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		exitErr("read backup", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	reloaded := false
	engine := newEngine(s, cfg, log, func() { reloaded = true })
	if err := engine.Import(cmd.Context(), data, force); err != nil {
		exitErr("import", err)
	}

	if textFormat() {
		output.Success("imported %s", args[0])
		if reloaded {
			output.Info("local stores changed; restart running clients to pick up the new state")
		}
		return
	}
	printJSON(map[string]any{"ok": true, "force": force, "reload": reloaded})
}
