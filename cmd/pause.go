package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pauseCmd = &cobra.Command{
	Use:   "pause <id>",
	Short: "Pause an active download",
	Args:  cobra.ExactArgs(1),
	RunE:  runPause,
}

func init() {
	rootCmd.AddCommand(pauseCmd)
}

func runPause(cmd *cobra.Command, args []string) error {
	e, closeStore, err := openEngine()
	if err != nil {
		return err
	}
	defer closeStore()

	id, err := resolveTaskID(e, args[0])
	if err != nil {
		return err
	}
	if err := e.PauseTask(id); err != nil {
		return err
	}
	fmt.Printf("paused %s\n", id)
	return nil
}
