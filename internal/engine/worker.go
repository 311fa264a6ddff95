package engine

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/muhammad1505/idm-open/internal/config"
	"github.com/muhammad1505/idm-open/internal/errs"
	"github.com/muhammad1505/idm-open/internal/netclient"
	"github.com/muhammad1505/idm-open/internal/task"
	"github.com/muhammad1505/idm-open/internal/throttle"
)

const streamBufSize = 64 * 1024

func buildRequest(t *task.Task, cfg config.EngineConfig, url string) netclient.Request {
	req := netclient.Request{
		URL:       url,
		Headers:   t.Headers,
		Cookies:   t.Cookies,
		UserAgent: cfg.UserAgent,
		Proxy:     t.ProxyURL,
	}
	if t.AuthUser != "" || t.AuthPass != "" {
		req.BasicAuth = &netclient.BasicAuth{User: t.AuthUser, Pass: t.AuthPass}
	}
	return req
}

// downloadSegment fetches one segment's byte range, retrying across every
// candidate URL before sleeping a backoff and trying the whole set again, for
// cfg.RetryCount+1 rounds in all. It returns nil on a clean stop (pause/cancel) as
// well as on success; only exhausting every retry round is an error.
func downloadSegment(ctx context.Context, index int, t *task.Task, urlCandidates []string, cfg config.EngineConfig, net netclient.Client, progress *progressTracker, thr *throttle.Throttle, flag *stopFlag) error {
	rangeStart, rangeEnd, _, ok := progress.segmentRange(index)
	if !ok {
		return errs.New(errs.KindNotFound, "segment %d", index)
	}
	useRanges := t.TotalBytes > 0 && rangeEnd >= rangeStart
	size := rangeEnd - rangeStart + 1

	var lastErr error
	backoff := time.Duration(cfg.RetryBackoffSecs) * time.Second

	for attempt := uint32(0); attempt <= cfg.RetryCount; attempt++ {
		if flag.get() != stopNone {
			return nil
		}
		for _, url := range urlCandidates {
			if flag.get() != stopNone {
				return nil
			}

			_, _, currentDownloaded, _ := progress.segmentRange(index)
			if useRanges && currentDownloaded >= size {
				return nil
			}

			start, end := uint64(0), uint64(0)
			if useRanges {
				start, end = rangeStart+currentDownloaded, rangeEnd
			}

			req := buildRequest(t, cfg, url)
			if useRanges {
				req.Range = &netclient.ByteRange{Start: start, End: end}
			}

			resp, err := net.Get(ctx, req)
			if err != nil {
				lastErr = err
				continue
			}

			if useRanges && resp.StatusCode != http.StatusPartialContent {
				resp.Body.Close()
				lastErr = errs.New(errs.KindNetwork, "range not supported (status %d)", resp.StatusCode)
				continue
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				resp.Body.Close()
				lastErr = errs.New(errs.KindNetwork, "download failed with status %d", resp.StatusCode)
				continue
			}

			if err := streamToFile(resp, t.DestPath, start, progress, index, thr, flag); err != nil {
				lastErr = err
				continue
			}

			if flag.get() != stopNone {
				return nil
			}

			progress.markSegmentCompleted(index)
			if err := progress.persistSegments(); err != nil {
				return err
			}
			return nil
		}

		if attempt < cfg.RetryCount {
			time.Sleep(backoff)
		}
	}

	if lastErr != nil {
		return lastErr
	}
	return errs.New(errs.KindNetwork, "failed to download segment %d", index)
}

// streamToFile writes resp's body to destPath starting at startOffset,
// reporting progress and sleeping for the throttle after every chunk. It
// stops early, without error, the moment flag is raised.
func streamToFile(resp *http.Response, destPath string, startOffset uint64, progress *progressTracker, index int, thr *throttle.Throttle, flag *stopFlag) error {
	defer resp.Body.Close()

	file, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.Wrap(errs.KindIo, err, "opening %s", destPath)
	}
	defer file.Close()

	if _, err := file.Seek(int64(startOffset), io.SeekStart); err != nil {
		return errs.Wrap(errs.KindIo, err, "seeking %s", destPath)
	}

	buf := make([]byte, streamBufSize)
	for {
		if flag.get() != stopNone {
			return nil
		}
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := file.Write(buf[:n]); err != nil {
				return errs.Wrap(errs.KindIo, err, "writing %s", destPath)
			}
			if err := progress.addBytes(index, uint64(n)); err != nil {
				return err
			}
			progress.maybeCheckStatus(flag)
			thr.Sleep(uint64(n))
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return errs.Wrap(errs.KindNetwork, readErr, "reading response body")
		}
	}
}
