package cli

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/state-sync/internal/model"
	"github.com/rcliao/state-sync/internal/snapshot"
)

func init() {
	cmd := &cobra.Command{
		Use:   "show [store-key]",
		Short: "Print the local snapshot, or one store of it",
		Long: "Print the local snapshot as JSON. Store keys: chat-next-web-store, access-control, " +
			"app-config, mask-store, prompt-store.",
		Args: cobra.MaximumNArgs(1),
		Run:  runShow,
	}

	RootCmd.AddCommand(cmd)
}

func runShow(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	state, err := snapshot.ReadAll(cmd.Context(), snapshot.FromStore(s))
	if err != nil {
		exitErr("read snapshot", err)
	}
	if len(args) == 0 {
		printJSON(state)
		return
	}

	key := model.StoreKey(args[0])
	if !model.ValidStoreKeys[key] {
		exitErr("show", fmt.Errorf("unknown store %q", args[0]))
	}

	data, err := json.Marshal(state)
	if err != nil {
		exitErr("encode snapshot", err)
	}
	var stores map[string]json.RawMessage
	if err := json.Unmarshal(data, &stores); err != nil {
		exitErr("decode snapshot", err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, stores[string(key)], "", "  "); err != nil {
		exitErr("format store", err)
	}
	fmt.Println(out.String())
}
