// Status command: queue depth, replica size, and sync cursor.
package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue depth and sync state",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	depth, err := a.queue.Depth()
	if err != nil {
		return err
	}
	cursor, err := a.store.GetCursor()
	if err != nil {
		return err
	}
	entities, err := a.store.ListEntities()
	if err != nil {
		return err
	}

	if flagJSON {
		out, err := json.MarshalIndent(map[string]any{
			"queue_depth":    depth,
			"replica_size":   len(entities),
			"id_mappings":    a.registry.Len(),
			"sync_tag":       cursor.SyncTag,
			"last_sync":      cursor.LastSyncAt,
			"last_full_sync": cursor.LastFullSyncAt,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("queue depth:    %d\n", depth)
	fmt.Printf("replica size:   %d\n", len(entities))
	fmt.Printf("id mappings:    %d\n", a.registry.Len())
	fmt.Printf("last sync:      %s\n", formatSyncTime(cursor.LastSyncAt))
	fmt.Printf("last full sync: %s\n", formatSyncTime(cursor.LastFullSyncAt))
	return nil
}

func formatSyncTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(time.RFC3339)
}
