package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muhammad1505/idm-open/internal/checksum"
	"github.com/muhammad1505/idm-open/internal/errs"
	"github.com/muhammad1505/idm-open/internal/segment"
	"github.com/muhammad1505/idm-open/internal/task"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqlitePath := filepath.Join(t.TempDir(), "idm.db")
	sqliteStore, err := Open(sqlitePath)
	require.NoError(t, err)
	t.Cleanup(func() { sqliteStore.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sqliteStore,
	}
}

func TestStore_SaveAndLoadTask(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			tk := task.New("https://example.com/file.zip", "/tmp/file.zip")
			tk.Headers["X-Test"] = "1"
			tk.Cookies["session"] = "abc"
			tk.Mirrors = []string{"https://mirror1.example.com/file.zip", "https://mirror2.example.com/file.zip"}
			tk.Checksum = &checksum.Request{Type: checksum.SHA256, ExpectedHex: "deadbeef"}
			tk.ProxyURL = "http://proxy.example.com:8080"
			tk.AuthUser = "alice"
			tk.AuthPass = "secret"

			require.NoError(t, store.SaveTask(tk))

			loaded, err := store.LoadTask(tk.ID)
			require.NoError(t, err)
			assert.Equal(t, tk.URL, loaded.URL)
			assert.Equal(t, tk.DestPath, loaded.DestPath)
			assert.Equal(t, tk.Headers, loaded.Headers)
			assert.Equal(t, tk.Cookies, loaded.Cookies)
			assert.Equal(t, tk.Mirrors, loaded.Mirrors)
			require.NotNil(t, loaded.Checksum)
			assert.Equal(t, *tk.Checksum, *loaded.Checksum)
			assert.Equal(t, tk.ProxyURL, loaded.ProxyURL)
			assert.Equal(t, tk.AuthUser, loaded.AuthUser)
			assert.Equal(t, tk.AuthPass, loaded.AuthPass)
		})
	}
}

func TestStore_LoadTask_NotFound(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.LoadTask(task.NewID())
			require.Error(t, err)
			assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
		})
	}
}

func TestStore_SaveTaskUpdatesExistingRow(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			tk := task.New("https://example.com/file.zip", "/tmp/file.zip")
			require.NoError(t, store.SaveTask(tk))

			tk.Status = task.StatusActive
			tk.DownloadedBytes = 1024
			require.NoError(t, store.SaveTask(tk))

			loaded, err := store.LoadTask(tk.ID)
			require.NoError(t, err)
			assert.Equal(t, task.StatusActive, loaded.Status)
			assert.Equal(t, uint64(1024), loaded.DownloadedBytes)

			all, err := store.ListTasks()
			require.NoError(t, err)
			assert.Len(t, all, 1)
		})
	}
}

func TestStore_DeleteTask(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			tk := task.New("https://example.com/file.zip", "/tmp/file.zip")
			require.NoError(t, store.SaveTask(tk))
			require.NoError(t, store.SaveSegments(tk.ID, []segment.Segment{segment.New(0, 0, 99)}))

			require.NoError(t, store.DeleteTask(tk.ID))

			_, err := store.LoadTask(tk.ID)
			require.Error(t, err)

			segments, err := store.LoadSegments(tk.ID)
			require.NoError(t, err)
			assert.Empty(t, segments)
		})
	}
}

func TestStore_SaveAndLoadSegments(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			tk := task.New("https://example.com/file.zip", "/tmp/file.zip")
			require.NoError(t, store.SaveTask(tk))

			segments := []segment.Segment{
				segment.New(0, 0, 99),
				segment.New(1, 100, 199),
			}
			segments[0].DownloadedBytes = 100
			segments[0].Status = segment.StatusCompleted

			require.NoError(t, store.SaveSegments(tk.ID, segments))

			loaded, err := store.LoadSegments(tk.ID)
			require.NoError(t, err)
			require.Len(t, loaded, 2)
			assert.Equal(t, segment.StatusCompleted, loaded[0].Status)
			assert.Equal(t, uint64(100), loaded[0].DownloadedBytes)
			assert.Equal(t, segment.StatusPending, loaded[1].Status)
		})
	}
}

func TestStore_SaveSegmentsReplacesPrevious(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			tk := task.New("https://example.com/file.zip", "/tmp/file.zip")
			require.NoError(t, store.SaveTask(tk))

			require.NoError(t, store.SaveSegments(tk.ID, []segment.Segment{
				segment.New(0, 0, 99),
				segment.New(1, 100, 199),
			}))
			require.NoError(t, store.SaveSegments(tk.ID, []segment.Segment{
				segment.New(0, 0, 199),
			}))

			loaded, err := store.LoadSegments(tk.ID)
			require.NoError(t, err)
			assert.Len(t, loaded, 1)
		})
	}
}

func TestStore_ListTasksEmpty(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			all, err := store.ListTasks()
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}
