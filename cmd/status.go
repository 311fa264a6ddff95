package cmd

import (
	"fmt"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Show a single task's detail",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	e, closeStore, err := openEngine()
	if err != nil {
		return err
	}
	defer closeStore()

	id, err := resolveTaskID(e, args[0])
	if err != nil {
		return err
	}
	t, err := e.GetTask(id)
	if err != nil {
		return err
	}

	fmt.Printf("id:          %s\n", t.ID)
	fmt.Printf("url:         %s\n", t.URL)
	fmt.Printf("destination: %s\n", t.DestPath)
	fmt.Printf("status:      %s\n", t.Status)
	fmt.Printf("progress:    %s\n", progressString(t))
	if t.TotalBytes > 0 {
		fmt.Printf("size:        %s\n", humanize.Bytes(t.TotalBytes))
	}
	if len(t.Mirrors) > 0 {
		fmt.Printf("mirrors:     %d\n", len(t.Mirrors))
	}
	if t.Checksum != nil {
		fmt.Printf("checksum:    %s:%s\n", t.Checksum.Type, t.Checksum.ExpectedHex)
	}
	if t.Error != "" {
		fmt.Printf("error:       %s\n", t.Error)
	}
	return nil
}
