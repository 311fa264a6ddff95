package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/muhammad1505/idm-open/internal/task"
)

var lsJSON bool

var lsCmd = &cobra.Command{
	Use:     "ls",
	Short:   "List all tasks",
	Aliases: []string{"list"},
	RunE:    runLs,
}

func init() {
	lsCmd.Flags().BoolVar(&lsJSON, "json", false, "print as JSON instead of a table")
	rootCmd.AddCommand(lsCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	e, closeStore, err := openEngine()
	if err != nil {
		return err
	}
	defer closeStore()

	tasks, err := e.ListTasks()
	if err != nil {
		return err
	}

	if lsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	}

	if len(tasks) == 0 {
		fmt.Println("no tasks")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPROGRESS\tSIZE\tURL")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Status, progressString(t), humanize.Bytes(t.TotalBytes), t.URL)
	}
	return w.Flush()
}

func progressString(t *task.Task) string {
	if t.TotalBytes == 0 {
		return humanize.Bytes(t.DownloadedBytes)
	}
	pct := float64(t.DownloadedBytes) / float64(t.TotalBytes) * 100
	return fmt.Sprintf("%.1f%%", pct)
}
