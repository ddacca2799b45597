// Sync command: run one full or incremental sync pass.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var flagFullSync bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync pass against the remote service",
	Long: `Sync reconciles the local replica with the remote note service.

An incremental pass (the default) pulls changes since the last sync tag,
resolves conflicts by last writer wins, and then delivers any queued offline
writes. A full pass (--full) drains the queue first, fetches the complete
remote entity set, and replaces the local replica wholesale.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&flagFullSync, "full", false, "run a full sync instead of incremental")
}

func runSync(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if flagFullSync {
		err = a.engine.FullSync(ctx)
	} else {
		if err = a.engine.IncrementalSync(ctx); err == nil {
			err = a.processor.RunCycle(ctx)
		}
	}
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	depth, err := a.queue.Depth()
	if err != nil {
		return err
	}
	cursor, err := a.store.GetCursor()
	if err != nil {
		return err
	}

	if flagJSON {
		out, err := json.MarshalIndent(map[string]any{
			"full":        flagFullSync,
			"queue_depth": depth,
			"sync_tag":    cursor.SyncTag,
			"last_sync":   cursor.LastSyncAt,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	kind := "incremental"
	if flagFullSync {
		kind = "full"
	}
	fmt.Printf("%s sync finished, %d operation(s) still queued\n", kind, depth)
	return nil
}
