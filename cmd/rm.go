package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muhammad1505/idm-open/internal/engine"
	"github.com/muhammad1505/idm-open/internal/task"
)

var rmClean bool

var rmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a task's record",
	Long: `Remove a task's record from the database. Use --clean instead of an id
to remove every completed, failed, or canceled task in one pass.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRm,
}

func init() {
	rmCmd.Flags().BoolVar(&rmClean, "clean", false, "remove all completed, failed, and canceled tasks")
	rootCmd.AddCommand(rmCmd)
}

func runRm(cmd *cobra.Command, args []string) error {
	e, closeStore, err := openEngine()
	if err != nil {
		return err
	}
	defer closeStore()

	if rmClean {
		return removeFinishedTasks(e)
	}
	if len(args) != 1 {
		return fmt.Errorf("rm requires a task id, or --clean")
	}

	id, err := resolveTaskID(e, args[0])
	if err != nil {
		return err
	}
	if err := e.RemoveTask(id); err != nil {
		return err
	}
	fmt.Printf("removed %s\n", id)
	return nil
}

func removeFinishedTasks(e *engine.Engine) error {
	tasks, err := e.ListTasks()
	if err != nil {
		return err
	}
	for _, t := range tasks {
		switch t.Status {
		case task.StatusCompleted, task.StatusFailed, task.StatusCanceled:
			if err := e.RemoveTask(t.ID); err != nil {
				return fmt.Errorf("removing %s: %w", t.ID, err)
			}
			fmt.Printf("removed %s\n", t.ID)
		}
	}
	return nil
}
