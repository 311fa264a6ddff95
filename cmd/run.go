package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Admit queued tasks and drive every download to completion",
	Long: `Run readmits every queued task (and any task left active by a
previous, unclean shutdown), then downloads them concurrently until the
queue drains or it's interrupted with Ctrl+C.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	e, closeStore, err := openEngine()
	if err != nil {
		return err
	}
	defer closeStore()

	n, err := e.EnqueueQueued()
	if err != nil {
		return err
	}
	fmt.Printf("admitted %d task(s)\n", n)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nshutting down, waiting for active segments to stop...")
		cancel()
	}()

	if err := e.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Println("done")
	return nil
}
