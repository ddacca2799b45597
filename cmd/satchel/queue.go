// Queue commands: list queued operations and re-queue terminal failures.
package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/satchel/pkg/types"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and manage the offline operation queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued operations",
	Long: `List shows every queued operation, including terminal failures
waiting for a manual retry, ordered the way the processor dequeues them.`,
	Args: cobra.NoArgs,
	RunE: runQueueList,
}

var queueRetryCmd = &cobra.Command{
	Use:   "retry <operation-id>",
	Short: "Re-queue a terminally failed operation",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueueRetry,
}

var queueClearCmd = &cobra.Command{
	Use:   "clear <operation-id>",
	Short: "Drop a terminally failed operation without executing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueueClear,
}

func init() {
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueRetryCmd)
	queueCmd.AddCommand(queueClearCmd)
}

func runQueueList(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ops, err := a.store.ListOperations()
	if err != nil {
		return fmt.Errorf("list operations: %w", err)
	}

	if flagJSON {
		out, err := json.MarshalIndent(ops, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	if len(ops) == 0 {
		fmt.Println("queue is empty")
		return nil
	}
	for _, op := range ops {
		fmt.Printf("%s  %-14s %-10s %s%s\n",
			op.ID, op.Kind, describeStatus(op), op.EntityID, describeError(op))
	}
	return nil
}

func runQueueRetry(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	id := args[0]
	if err := a.queue.Retry(id); err != nil {
		return fmt.Errorf("retry %s: %w", id, err)
	}
	fmt.Printf("operation %s re-queued\n", id)
	return nil
}

func runQueueClear(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	id := args[0]
	if err := a.queue.Clear(id); err != nil {
		return fmt.Errorf("clear %s: %w", id, err)
	}
	fmt.Printf("operation %s dropped\n", id)
	return nil
}

// describeStatus renders the status column, distinguishing a terminal failure
// from one still scheduled for retry.
func describeStatus(op types.Operation) string {
	if op.Status == types.StatusFailed && op.NextRetryAt.IsZero() {
		return "failed!"
	}
	if op.Status == types.StatusFailed {
		return "retry@" + op.NextRetryAt.Format(time.TimeOnly)
	}
	return op.Status
}

func describeError(op types.Operation) string {
	if op.LastError == "" {
		return ""
	}
	return "  (" + op.LastError + ")"
}
