package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel a download",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancel,
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}

func runCancel(cmd *cobra.Command, args []string) error {
	e, closeStore, err := openEngine()
	if err != nil {
		return err
	}
	defer closeStore()

	id, err := resolveTaskID(e, args[0])
	if err != nil {
		return err
	}
	if err := e.CancelTask(id); err != nil {
		return err
	}
	fmt.Printf("canceled %s\n", id)
	return nil
}
