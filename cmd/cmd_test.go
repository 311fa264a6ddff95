package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muhammad1505/idm-open/internal/storage"
	"github.com/muhammad1505/idm-open/internal/task"
)

// resetFlags clears the package-level flag variables that repeatable flags
// (StringArrayVar) accumulate into across Execute calls in the same
// process; a real CLI invocation only ever parses its flags once.
func resetFlags() {
	addOutput, addBatchFile, addChecksum, addProxy, addUser, addPass = "", "", "", "", "", ""
	addHeaders, addCookies, addMirrors = nil, nil, nil
	addPriority = 0
	rmClean = false
	lsJSON = false
}

// execArgs resets flag state and runs the root command with args.
func execArgs(t *testing.T, args ...string) error {
	t.Helper()
	resetFlags()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// execCmd runs args against a fresh temp database and returns its path.
func execCmd(t *testing.T, args ...string) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "tasks.db")
	require.NoError(t, execArgs(t, append([]string{"--db", db}, args...)...))
	return db
}

func loadTask(t *testing.T, db string, id task.ID) *task.Task {
	t.Helper()
	store, err := storage.Open(db)
	require.NoError(t, err)
	defer store.Close()
	tk, err := store.LoadTask(id)
	require.NoError(t, err)
	return tk
}

func onlyTask(t *testing.T, db string) *task.Task {
	t.Helper()
	store, err := storage.Open(db)
	require.NoError(t, err)
	defer store.Close()
	tasks, err := store.ListTasks()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	return tasks[0]
}

func TestAddCmd_QueuesTask(t *testing.T) {
	db := execCmd(t, "add", "https://example.com/file.bin", "-o", filepath.Join(t.TempDir(), "file.bin"))

	tk := onlyTask(t, db)
	assert.Equal(t, task.StatusQueued, tk.Status)
	assert.Equal(t, "https://example.com/file.bin", tk.URL)
}

func TestAddCmd_AppliesOptions(t *testing.T) {
	db := execCmd(t, "add", "https://example.com/file.bin",
		"--header", "X-Test: 1",
		"--cookie", "session=abc",
		"--priority", "5",
		"--checksum", "sha256:deadbeef")

	tk := onlyTask(t, db)
	assert.Equal(t, "1", tk.Headers["X-Test"])
	assert.Equal(t, "abc", tk.Cookies["session"])
	assert.EqualValues(t, 5, tk.Priority)
	require.NotNil(t, tk.Checksum)
	assert.Equal(t, "deadbeef", tk.Checksum.ExpectedHex)
}

func TestAddCmd_RejectsNoURLs(t *testing.T) {
	db := filepath.Join(t.TempDir(), "tasks.db")
	assert.Error(t, execArgs(t, "--db", db, "add"))
}

func TestAddCmd_RejectsMalformedHeader(t *testing.T) {
	db := filepath.Join(t.TempDir(), "tasks.db")
	assert.Error(t, execArgs(t, "--db", db, "add", "https://example.com/f.bin", "--header", "no-colon-here"))
}

func TestCancelCmd_CancelsTask(t *testing.T) {
	db := execCmd(t, "add", "https://example.com/file.bin")
	tk := onlyTask(t, db)

	require.NoError(t, execArgs(t, "--db", db, "cancel", tk.ID.String()))

	canceled := loadTask(t, db, tk.ID)
	assert.Equal(t, task.StatusCanceled, canceled.Status)
}

func TestCancelCmd_AcceptsIDPrefix(t *testing.T) {
	db := execCmd(t, "add", "https://example.com/file.bin")
	tk := onlyTask(t, db)

	require.NoError(t, execArgs(t, "--db", db, "cancel", tk.ID.String()[:8]))

	canceled := loadTask(t, db, tk.ID)
	assert.Equal(t, task.StatusCanceled, canceled.Status)
}

func TestResumeCmd_RequeuesFailedTask(t *testing.T) {
	db := execCmd(t, "add", "https://example.com/file.bin")
	tk := onlyTask(t, db)

	store, err := storage.Open(db)
	require.NoError(t, err)
	tk.Status = task.StatusFailed
	require.NoError(t, store.SaveTask(tk))
	require.NoError(t, store.Close())

	require.NoError(t, execArgs(t, "--db", db, "resume", tk.ID.String()))

	resumed := loadTask(t, db, tk.ID)
	assert.Equal(t, task.StatusQueued, resumed.Status)
}

func TestRmCmd_RemovesTask(t *testing.T) {
	db := execCmd(t, "add", "https://example.com/file.bin")
	tk := onlyTask(t, db)

	require.NoError(t, execArgs(t, "--db", db, "rm", tk.ID.String()))

	store, err := storage.Open(db)
	require.NoError(t, err)
	defer store.Close()
	tasks, err := store.ListTasks()
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestRmCmd_CleanRemovesOnlyFinishedTasks(t *testing.T) {
	db := execCmd(t, "add", "https://example.com/a.bin")
	tk := onlyTask(t, db)

	store, err := storage.Open(db)
	require.NoError(t, err)
	tk.Status = task.StatusCompleted
	require.NoError(t, store.SaveTask(tk))
	require.NoError(t, store.Close())

	require.NoError(t, execArgs(t, "--db", db, "add", "https://example.com/b.bin"))
	require.NoError(t, execArgs(t, "--db", db, "rm", "--clean"))

	store, err = storage.Open(db)
	require.NoError(t, err)
	defer store.Close()
	tasks, err := store.ListTasks()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.StatusQueued, tasks[0].Status)
}

func TestLsCmd_ListsQueuedTasks(t *testing.T) {
	db := execCmd(t, "add", "https://example.com/file.bin")
	require.NoError(t, execArgs(t, "--db", db, "ls"))
}

func TestStatusCmd_UnknownIDErrors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "tasks.db")
	assert.Error(t, execArgs(t, "--db", db, "status", task.NewID().String()))
}
