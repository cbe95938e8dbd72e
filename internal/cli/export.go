package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rcliao/state-sync/internal/output"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the local stores as a backup file",
		Long:  "Write the local snapshot to Backup-<timestamp>.json in the output directory.",
		Run:   runExport,
	}

	cmd.Flags().StringP("out", "o", ".", "Output directory")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	outDir, _ := cmd.Flags().GetString("out")

	log := newLogger()
	defer log.Sync()
	cfg := loadConfig(log)

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	name, data, err := newEngine(s, cfg, log, nil).Export(cmd.Context())
	if err != nil {
		exitErr("export", err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		exitErr("create output dir", err)
	}
	path := filepath.Join(outDir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		exitErr("write backup", err)
	}

	if textFormat() {
		output.Success("wrote %s (%s)", path, output.FormatBytes(int64(len(data))))
		return
	}
	printJSON(map[string]any{"ok": true, "path": path, "bytes": len(data)})
}
