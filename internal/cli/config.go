package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rcliao/state-sync/internal/config"
	"github.com/rcliao/state-sync/internal/output"
)

func init() {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or edit the sync configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Run:   runConfigShow,
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set one configuration field",
		Long: "Set one field by its dotted key and save the file. Keys: provider, use_proxy, proxy_url, " +
			"force_direction, webdav.endpoint, webdav.username, webdav.password, upstash.force_sync, " +
			"upstash.endpoint, upstash.username, upstash.api_key.",
		Args: cobra.ExactArgs(2),
		Run:  runConfigSet,
	}

	cmd.AddCommand(show, set)
	RootCmd.AddCommand(cmd)
}

func runConfigShow(cmd *cobra.Command, args []string) {
	log := newLogger()
	defer log.Sync()
	cfg := loadConfig(log).Redacted()

	if textFormat() {
		fmtBool := strconv.FormatBool
		fmt.Print(output.FormatKeyValues(map[string]string{
			"path":               getConfigPath(),
			"version":            strconv.Itoa(cfg.Version),
			"provider":           string(cfg.Provider),
			"use_proxy":          fmtBool(cfg.UseProxy),
			"proxy_url":          cfg.ProxyURL,
			"force_direction":    string(cfg.ForceDirection),
			"webdav.endpoint":    cfg.WebDAV.Endpoint,
			"webdav.username":    cfg.WebDAV.Username,
			"webdav.password":    cfg.WebDAV.Password,
			"upstash.force_sync": fmtBool(cfg.Upstash.ForceSync),
			"upstash.endpoint":   cfg.Upstash.Endpoint,
			"upstash.username":   cfg.Upstash.Username,
			"upstash.api_key":    cfg.Upstash.APIKey,
			"cloud_sync_ready":   fmtBool(cfg.CloudSyncReady()),
		}))
		return
	}
	printJSON(map[string]any{
		"path":             getConfigPath(),
		"config":           cfg,
		"cloud_sync_ready": cfg.CloudSyncReady(),
	})
}

func runConfigSet(cmd *cobra.Command, args []string) {
	path := getConfigPath()

	// Environment overrides must not end up in the file.
	cfg, _, err := config.LoadFile(path)
	if err != nil {
		exitErr("load config", err)
	}
	if err := cfg.Set(args[0], args[1]); err != nil {
		exitErr("set", err)
	}
	cfg.Version = config.Version
	if err := config.Save(path, cfg); err != nil {
		exitErr("save config", err)
	}

	if textFormat() {
		output.Success("set %s in %s", args[0], path)
		return
	}
	printJSON(map[string]any{"ok": true, "key": args[0], "path": path})
}
