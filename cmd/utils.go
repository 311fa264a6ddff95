package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/muhammad1505/idm-open/internal/engine"
	"github.com/muhammad1505/idm-open/internal/task"
)

// readURLsFromFile reads one URL per line, skipping blank lines and
// lines starting with '#'.
func readURLsFromFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			urls = append(urls, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("no URLs found in file")
	}
	return urls, nil
}

// resolveTaskID finds the task whose ID starts with the given prefix,
// so the user can type a short, unambiguous fragment instead of a full
// UUID. It errors if the prefix matches zero or more than one task.
func resolveTaskID(e *engine.Engine, prefix string) (task.ID, error) {
	if id, err := task.ParseID(prefix); err == nil {
		return id, nil
	}

	tasks, err := e.ListTasks()
	if err != nil {
		return task.ID{}, err
	}

	var match *task.Task
	for _, tk := range tasks {
		if strings.HasPrefix(tk.ID.String(), prefix) {
			if match != nil {
				return task.ID{}, fmt.Errorf("ambiguous task id prefix %q", prefix)
			}
			match = tk
		}
	}
	if match == nil {
		return task.ID{}, fmt.Errorf("no task matches id prefix %q", prefix)
	}
	return match.ID, nil
}
