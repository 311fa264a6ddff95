package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <id>",
	Short: "Requeue a paused or failed download",
	Args:  cobra.ExactArgs(1),
	RunE:  runResume,
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	e, closeStore, err := openEngine()
	if err != nil {
		return err
	}
	defer closeStore()

	id, err := resolveTaskID(e, args[0])
	if err != nil {
		return err
	}
	if err := e.ResumeTask(id); err != nil {
		return err
	}
	fmt.Printf("queued %s\n", id)
	return nil
}
