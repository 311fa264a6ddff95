// Package engine orchestrates the full task lifecycle: admission from a
// priority queue, per-task URL resolution and segmentation, concurrent
// segment download, and terminal-state persistence.
package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/muhammad1505/idm-open/internal/checksum"
	"github.com/muhammad1505/idm-open/internal/config"
	"github.com/muhammad1505/idm-open/internal/destpath"
	"github.com/muhammad1505/idm-open/internal/errs"
	"github.com/muhammad1505/idm-open/internal/logx"
	"github.com/muhammad1505/idm-open/internal/netclient"
	"github.com/muhammad1505/idm-open/internal/queue"
	"github.com/muhammad1505/idm-open/internal/resolver"
	"github.com/muhammad1505/idm-open/internal/scheduler"
	"github.com/muhammad1505/idm-open/internal/segment"
	"github.com/muhammad1505/idm-open/internal/storage"
	"github.com/muhammad1505/idm-open/internal/task"
	"github.com/muhammad1505/idm-open/internal/throttle"
)

const admissionPollInterval = 200 * time.Millisecond

// Engine is the download manager core: every task it admits runs to a
// terminal status (Completed, Failed, Paused, or Canceled) on its own
// goroutine tree, independent of every other admitted task.
type Engine struct {
	config    config.EngineConfig
	scheduler scheduler.Scheduler
	store     storage.Store
	net       netclient.Client
	logger    logx.Logger

	queueMu sync.Mutex
	queue   *queue.Queue

	activeMu sync.Mutex
	active   map[task.ID]struct{}

	globalLimiter *throttle.Limiter

	wg sync.WaitGroup
}

// New builds an Engine with an in-memory store and a tuned HTTP client.
// Chain WithStorage/WithNetClient/WithLogger to override either.
func New(cfg config.EngineConfig) *Engine {
	return &Engine{
		config:        cfg,
		scheduler:     scheduler.New(cfg.MaxConcurrentTasks),
		store:         storage.NewMemory(),
		net:           netclient.New(),
		logger:        logx.Default(),
		queue:         queue.New(),
		active:        make(map[task.ID]struct{}),
		globalLimiter: throttle.NewLimiter(cfg.GlobalSpeedLimitBytesPerSec),
	}
}

// WithStorage replaces the engine's persistence layer.
func (e *Engine) WithStorage(store storage.Store) *Engine {
	e.store = store
	return e
}

// WithNetClient replaces the engine's HTTP client.
func (e *Engine) WithNetClient(net netclient.Client) *Engine {
	e.net = net
	return e
}

// WithLogger replaces the engine's logger.
func (e *Engine) WithLogger(logger logx.Logger) *Engine {
	e.logger = logx.Or(logger)
	return e
}

// AddTask creates a new Queued task for url/destPath and admits it into the
// queue.
func (e *Engine) AddTask(url, destPath string) (task.ID, error) {
	t := task.New(url, destPath)
	if err := e.store.SaveTask(t); err != nil {
		return task.ID{}, err
	}
	e.queueMu.Lock()
	e.queue.Push(queue.NewItem(t.ID, t.Priority))
	e.queueMu.Unlock()
	return t.ID, nil
}

// TaskOptions carries the richer, per-download fields AddTask's minimal
// (url, destPath) signature has no room for. They only take effect while
// applied through SetTaskOptions before the task leaves Queued.
type TaskOptions struct {
	Priority int32
	Headers  map[string]string
	Cookies  map[string]string
	Mirrors  []string
	Checksum *checksum.Request
	ProxyURL string
	AuthUser string
	AuthPass string
}

// SetTaskOptions applies opts to a still-Queued task. It is rejected once the
// task has left Queued, since a worker may already have captured the task's
// fields for its own segment plan by then.
func (e *Engine) SetTaskOptions(id task.ID, opts TaskOptions) error {
	t, err := e.store.LoadTask(id)
	if err != nil {
		return err
	}
	if t.Status != task.StatusQueued {
		return errs.New(errs.KindInvalidState, "cannot set options on task in state %s", t.Status)
	}

	if opts.Priority != 0 {
		t.Priority = opts.Priority
	}
	for k, v := range opts.Headers {
		t.Headers[k] = v
	}
	for k, v := range opts.Cookies {
		t.Cookies[k] = v
	}
	if len(opts.Mirrors) > 0 {
		t.Mirrors = append(t.Mirrors, opts.Mirrors...)
	}
	if opts.Checksum != nil {
		t.Checksum = opts.Checksum
	}
	if opts.ProxyURL != "" {
		t.ProxyURL = opts.ProxyURL
	}
	if opts.AuthUser != "" {
		t.AuthUser = opts.AuthUser
	}
	if opts.AuthPass != "" {
		t.AuthPass = opts.AuthPass
	}
	t.Touch()
	return e.store.SaveTask(t)
}

// ListTasks returns every task known to storage.
func (e *Engine) ListTasks() ([]*task.Task, error) {
	return e.store.ListTasks()
}

// GetTask loads a single task by ID.
func (e *Engine) GetTask(id task.ID) (*task.Task, error) {
	return e.store.LoadTask(id)
}

// EnqueueQueued re-admits every task whose storage status is Queued, and
// demotes-then-admits any task left Active in storage whose worker is not
// actually running (e.g. a stale row found after a restart). A task that is
// Active *and* has a live worker is left alone: demoting it here would race
// the worker's own terminal-status write.
func (e *Engine) EnqueueQueued() (int, error) {
	tasks, err := e.store.ListTasks()
	if err != nil {
		return 0, err
	}

	e.activeMu.Lock()
	defer e.activeMu.Unlock()
	e.queueMu.Lock()
	defer e.queueMu.Unlock()

	count := 0
	for _, t := range tasks {
		needsQueue := false
		switch t.Status {
		case task.StatusQueued:
			needsQueue = true
		case task.StatusActive:
			if _, running := e.active[t.ID]; !running {
				t.Status = task.StatusQueued
				t.Touch()
				if err := e.store.SaveTask(t); err != nil {
					return count, err
				}
				needsQueue = true
			}
		}
		if needsQueue {
			e.queue.Push(queue.NewItem(t.ID, t.Priority))
			count++
		}
	}
	return count, nil
}

// PauseTask requests a cooperative stop for a currently Active task.
func (e *Engine) PauseTask(id task.ID) error {
	t, err := e.store.LoadTask(id)
	if err != nil {
		return err
	}
	if t.Status != task.StatusActive {
		return errs.New(errs.KindInvalidState, "cannot pause task in state %s", t.Status)
	}
	t.Status = task.StatusPaused
	t.Touch()
	if err := e.store.SaveTask(t); err != nil {
		return err
	}
	e.activeMu.Lock()
	delete(e.active, id)
	e.activeMu.Unlock()
	return nil
}

// ResumeTask re-admits a Paused or Failed task.
func (e *Engine) ResumeTask(id task.ID) error {
	t, err := e.store.LoadTask(id)
	if err != nil {
		return err
	}
	if t.Status != task.StatusPaused && t.Status != task.StatusFailed {
		return errs.New(errs.KindInvalidState, "cannot resume task in state %s", t.Status)
	}
	t.Status = task.StatusQueued
	t.Touch()
	if err := e.store.SaveTask(t); err != nil {
		return err
	}
	e.queueMu.Lock()
	e.queue.Push(queue.NewItem(t.ID, t.Priority))
	e.queueMu.Unlock()
	return nil
}

// CancelTask requests a cooperative stop and marks the task terminal.
func (e *Engine) CancelTask(id task.ID) error {
	t, err := e.store.LoadTask(id)
	if err != nil {
		return err
	}
	t.Status = task.StatusCanceled
	t.Touch()
	if err := e.store.SaveTask(t); err != nil {
		return err
	}
	e.activeMu.Lock()
	delete(e.active, id)
	e.activeMu.Unlock()
	return nil
}

// RemoveTask deletes a task's storage row. It refuses to remove a task whose
// worker is currently running.
func (e *Engine) RemoveTask(id task.ID) error {
	e.activeMu.Lock()
	_, running := e.active[id]
	e.activeMu.Unlock()
	if running {
		return errs.New(errs.KindInvalidState, "cannot remove active task %s", id)
	}
	return e.store.DeleteTask(id)
}

// StartNext admits at most one task: it pops the queue, skips stale entries
// (rows deleted since they were queued) by looping rather than recursing,
// and spawns that task's worker goroutine. It reports (id, true, nil) when a
// task was started, (_, false, nil) when nothing was admitted, and a non-nil
// error only for a storage failure.
func (e *Engine) StartNext(ctx context.Context) (task.ID, bool, error) {
	for {
		e.activeMu.Lock()
		activeCount := len(e.active)
		e.activeMu.Unlock()
		if !e.scheduler.CanStart(activeCount) {
			return task.ID{}, false, nil
		}

		e.queueMu.Lock()
		item, ok := e.queue.Pop()
		e.queueMu.Unlock()
		if !ok {
			return task.ID{}, false, nil
		}

		t, err := e.store.LoadTask(item.TaskID)
		if err != nil {
			if errs.Is(err, errs.KindNotFound) {
				continue
			}
			return task.ID{}, false, err
		}
		if t.Status != task.StatusQueued {
			// The task was paused/canceled/removed-and-recreated after this
			// item was pushed: it's stale, not a sign the queue is empty.
			continue
		}

		t.Status = task.StatusActive
		t.Error = ""
		t.Touch()
		if err := e.store.SaveTask(t); err != nil {
			return task.ID{}, false, err
		}

		e.activeMu.Lock()
		e.active[t.ID] = struct{}{}
		e.activeMu.Unlock()

		e.wg.Add(1)
		go e.runTask(ctx, t.ID)

		return t.ID, true, nil
	}
}

func (e *Engine) runTask(ctx context.Context, id task.ID) {
	defer e.wg.Done()

	status, err := e.downloadTask(ctx, id)
	if err != nil {
		status = task.StatusFailed
	}

	if t, loadErr := e.store.LoadTask(id); loadErr == nil {
		t.Status = status
		if err != nil {
			t.Error = err.Error()
		}
		t.Touch()
		if saveErr := e.store.SaveTask(t); saveErr != nil {
			e.logger.Error("saving terminal task status", "task", id, "error", saveErr)
		}
	}

	e.activeMu.Lock()
	delete(e.active, id)
	e.activeMu.Unlock()
}

// Run admits and runs tasks until both the queue and the active set are
// empty, or ctx is canceled. It always waits for every already-started
// worker before returning.
func (e *Engine) Run(ctx context.Context) error {
	for {
		for {
			_, started, err := e.StartNext(ctx)
			if err != nil {
				e.WaitAll()
				return err
			}
			if !started {
				break
			}
		}

		e.queueMu.Lock()
		queueEmpty := e.queue.IsEmpty()
		e.queueMu.Unlock()

		e.activeMu.Lock()
		activeEmpty := len(e.active) == 0
		e.activeMu.Unlock()

		if queueEmpty && activeEmpty {
			break
		}

		select {
		case <-ctx.Done():
			e.WaitAll()
			return ctx.Err()
		case <-time.After(admissionPollInterval):
		}
	}
	e.WaitAll()
	return nil
}

// WaitAll blocks until every started worker goroutine has returned.
func (e *Engine) WaitAll() {
	e.wg.Wait()
}

// downloadTask runs one task end to end: URL resolution, destination and
// segment planning, concurrent segment fan-out, and finalization. A non-nil
// error means the task failed for a reason not already persisted by the
// worker itself (e.g. an unsupported provider or a storage fault); a nil
// error with a terminal status means the outcome (including Failed from
// exhausted segment retries) is already reflected in storage.
func (e *Engine) downloadTask(ctx context.Context, id task.ID) (task.Status, error) {
	t, err := e.store.LoadTask(id)
	if err != nil {
		return "", err
	}

	selectedURL, totalBytes, acceptRanges, contentDisposition, resolvedCandidates, urlCandidates, err := e.resolveDownloadURL(ctx, t)
	if err != nil {
		return "", err
	}

	resolvedDest := destpath.Resolve(t.DestPath, selectedURL, contentDisposition, nil)
	if resolvedDest != t.DestPath {
		t.DestPath = resolvedDest
	}

	downloadURLs := dedupPreserveOrder(append(append([]string{selectedURL}, resolvedCandidates...), urlCandidates...))

	useRanges := acceptRanges && totalBytes > 0 && e.config.MaxSegmentsPerTask > 1

	segments, err := e.planSegments(id, totalBytes, useRanges)
	if err != nil {
		return "", err
	}

	var downloadedTotal uint64
	for _, s := range segments {
		downloadedTotal += s.DownloadedBytes
	}
	t.TotalBytes = totalBytes
	t.DownloadedBytes = downloadedTotal
	t.Error = ""
	t.Touch()

	if err := e.store.SaveTask(t); err != nil {
		return "", err
	}
	if err := e.store.SaveSegments(id, segments); err != nil {
		return "", err
	}

	if err := e.preallocateDestination(t.DestPath, totalBytes); err != nil {
		return "", err
	}

	progress := newProgressTracker(id, e.store, segments, downloadedTotal, e.config.ProgressFlushBytes, e.config.StatusCheckBytes)
	perTaskThrottle := throttle.New(e.globalLimiter, e.config.PerTaskSpeedLimitBytesPerSec)
	flag := &stopFlag{}

	toDownload := markActiveSegments(progress)
	if err := progress.persistSegments(); err != nil {
		return "", err
	}

	var errMu sync.Mutex
	var segErrors []string
	var segWG sync.WaitGroup
	for _, index := range toDownload {
		segWG.Add(1)
		go func(index int) {
			defer segWG.Done()
			if err := downloadSegment(ctx, index, t, downloadURLs, e.config, e.net, progress, perTaskThrottle, flag); err != nil {
				flag.raise(stopFailed)
				errMu.Lock()
				segErrors = append(segErrors, err.Error())
				errMu.Unlock()
			}
		}(index)
	}
	segWG.Wait()

	if err := progress.flush(progress.downloaded.Load()); err != nil {
		return "", err
	}

	switch flag.get() {
	case stopPaused:
		return task.StatusPaused, nil
	case stopCanceled:
		return task.StatusCanceled, nil
	case stopFailed:
		if reloaded, err := e.store.LoadTask(id); err == nil {
			if len(segErrors) > 0 {
				reloaded.Error = strings.Join(segErrors, "; ")
			}
			reloaded.Touch()
			_ = e.store.SaveTask(reloaded)
		}
		return task.StatusFailed, nil
	}

	if totalBytes == 0 {
		if info, statErr := os.Stat(t.DestPath); statErr == nil {
			if reloaded, err := e.store.LoadTask(id); err == nil {
				reloaded.TotalBytes = uint64(info.Size())
				_ = e.store.SaveTask(reloaded)
			}
		}
	}

	if t.Checksum != nil && !checksum.Verify(t.DestPath, *t.Checksum) {
		if reloaded, err := e.store.LoadTask(id); err == nil {
			reloaded.Error = "checksum mismatch"
			_ = e.store.SaveTask(reloaded)
		}
		return task.StatusFailed, nil
	}

	return task.StatusCompleted, nil
}

// resolveDownloadURL probes every candidate URL (the task's URL first, then
// its mirrors, each preceded by any provider rewrite), following an HTML
// landing page through the resolver when a provider hides the real file
// behind one, and returns the first candidate that HEAD-probes as actual
// content. An HTML page from an unrecognized host whose scrape yields no
// usable link is itself selected.
func (e *Engine) resolveDownloadURL(ctx context.Context, t *task.Task) (selectedURL string, totalBytes uint64, acceptRanges bool, contentDisposition string, resolvedCandidates, urlCandidates []string, err error) {
	urlCandidates = resolver.ResolveURLCandidates(t.URLCandidates())
	totalBytes = t.TotalBytes

	for _, url := range urlCandidates {
		headReq := buildRequest(t, e.config, url)
		resp, headErr := e.net.Head(ctx, headReq)
		if headErr != nil || resp.StatusCode < 200 || resp.StatusCode >= 400 {
			continue
		}

		if !resolver.IsHTMLContentType(resp.ContentType) {
			selectedURL = url
			if resp.HasTotalBytes {
				totalBytes = resp.TotalBytes
			}
			acceptRanges = resp.AcceptRanges
			contentDisposition = resp.ContentDisposition
			break
		}

		provider := resolver.DetectProvider(url)
		if provider == resolver.ProviderMega {
			return "", 0, false, "", nil, nil, errs.New(errs.KindUnsupported, "mega.nz requires Mega SDK integration")
		}

		resolved, resolveErr := resolver.ResolveHTMLDownload(ctx, e.net, headReq)
		if resolveErr != nil {
			return "", 0, false, "", nil, nil, resolveErr
		}

		found := false
		for _, candidateURL := range resolved {
			resolvedCandidates = append(resolvedCandidates, candidateURL)
			candidateReq := buildRequest(t, e.config, candidateURL)
			candidateResp, candidateErr := e.net.Head(ctx, candidateReq)
			if candidateErr != nil {
				continue
			}
			if candidateResp.StatusCode >= 200 && candidateResp.StatusCode < 400 &&
				!resolver.IsHTMLContentType(candidateResp.ContentType) {
				selectedURL = candidateURL
				if candidateResp.HasTotalBytes {
					totalBytes = candidateResp.TotalBytes
				}
				acceptRanges = candidateResp.AcceptRanges
				contentDisposition = candidateResp.ContentDisposition
				found = true
				break
			}
		}
		if found {
			break
		}
		if provider != resolver.ProviderUnknown {
			continue
		}

		selectedURL = url
		if resp.HasTotalBytes {
			totalBytes = resp.TotalBytes
		}
		acceptRanges = resp.AcceptRanges
		contentDisposition = resp.ContentDisposition
		break
	}

	if selectedURL == "" {
		return "", 0, false, "", nil, nil, errs.New(errs.KindNetwork, "no reachable download url after resolution")
	}
	return selectedURL, totalBytes, acceptRanges, contentDisposition, resolvedCandidates, urlCandidates, nil
}

// planSegments loads any previously persisted segments and decides whether
// they still describe totalBytes under the ranged/non-ranged choice just
// made, rebuilding from scratch when they don't; it then reconciles status
// (stale Active -> Pending, already-complete ranges -> Completed) so a
// resumed task never redownloads finished bytes.
func (e *Engine) planSegments(id task.ID, totalBytes uint64, useRanges bool) ([]segment.Segment, error) {
	segments, err := e.store.LoadSegments(id)
	if err != nil {
		return nil, err
	}

	rebuild := len(segments) == 0 || (!useRanges && len(segments) > 1)
	if !rebuild && totalBytes > 0 {
		var maxEnd uint64
		for _, s := range segments {
			if s.RangeEnd > maxEnd {
				maxEnd = s.RangeEnd
			}
		}
		if maxEnd != totalBytes-1 {
			rebuild = true
		}
	}

	if rebuild {
		switch {
		case useRanges:
			segments = segment.BuildSegments(totalBytes, e.config.MaxSegmentsPerTask, e.config.MinSegmentSizeBytes)
		case totalBytes > 0:
			segments = []segment.Segment{segment.New(0, 0, totalBytes-1)}
		default:
			segments = []segment.Segment{segment.New(0, 0, 0)}
		}
	}

	for i := range segments {
		if segments[i].Status == segment.StatusActive {
			segments[i].Status = segment.StatusPending
		}
		if totalBytes > 0 && segments[i].DownloadedBytes >= segments[i].Size() {
			segments[i].DownloadedBytes = segments[i].Size()
			segments[i].Status = segment.StatusCompleted
		}
	}
	return segments, nil
}

func (e *Engine) preallocateDestination(destPath string, totalBytes uint64) error {
	if dir := filepath.Dir(destPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errs.Wrap(errs.KindIo, err, "creating directory %s", dir)
		}
	}
	if totalBytes == 0 {
		return nil
	}
	file, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.Wrap(errs.KindIo, err, "creating %s", destPath)
	}
	defer file.Close()
	if err := file.Truncate(int64(totalBytes)); err != nil {
		return errs.Wrap(errs.KindIo, err, "preallocating %s", destPath)
	}
	return nil
}

// markActiveSegments flips every not-yet-completed segment to Active and
// returns the indices whose bytes still need to be fetched.
func markActiveSegments(progress *progressTracker) []int {
	progress.segMu.Lock()
	defer progress.segMu.Unlock()

	var toDownload []int
	for i := range progress.segments {
		if progress.segments[i].Status != segment.StatusCompleted {
			progress.segments[i].Status = segment.StatusActive
			toDownload = append(toDownload, i)
		}
	}
	return toDownload
}

func dedupPreserveOrder(urls []string) []string {
	out := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
