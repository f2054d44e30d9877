package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dom/blueming-client/internal/events"
	"github.com/doyensec/safeurl"
	"github.com/google/uuid"
)

const noticeNoImage = "No image available for download."

// Opener opens a URL in a new browsing context.
type Opener interface {
	Open(ctx context.Context, rawURL string) error
}

// EventOpener asks connected UIs to open the URL.
type EventOpener struct {
	Publisher Publisher
}

func (o EventOpener) Open(_ context.Context, rawURL string) error {
	o.Publisher.Publish(events.TopicOpenURL, events.OpenURL{URL: rawURL})
	return nil
}

// NewSafeDownloadClient returns an HTTP client that refuses private,
// loopback and link-local destinations, including after DNS resolution.
func NewSafeDownloadClient(timeout time.Duration) *http.Client {
	cfg := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()
	return safeurl.Client(cfg).Client
}

type DownloaderOptions struct {
	HTTPClient *http.Client
	Dir        string
	Prefix     string
	Opener     Opener
	Logger     *slog.Logger
	Now        func() time.Time
}

// Downloader saves generated images to the local download directory.
type Downloader struct {
	httpClient *http.Client
	dir        string
	prefix     string
	publisher  Publisher
	opener     Opener
	logger     *slog.Logger
	now        func() time.Time
}

func NewDownloader(publisher Publisher, opts DownloaderOptions) *Downloader {
	d := &Downloader{
		httpClient: opts.HTTPClient,
		dir:        opts.Dir,
		prefix:     opts.Prefix,
		publisher:  publisher,
		opener:     opts.Opener,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if d.httpClient == nil {
		d.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if d.dir == "" {
		d.dir = "."
	}
	if d.prefix == "" {
		d.prefix = "blueming_ai"
	}
	if d.opener == nil {
		d.opener = EventOpener{Publisher: publisher}
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// FileName is the saved name for a history entry's image.
func (d *Downloader) FileName(historyID int64) string {
	return fmt.Sprintf("%s_history_%d.png", d.prefix, historyID)
}

// Download fetches imageURL, bypassing caches, and saves it as FileName(id)
// in the download directory, returning the saved path. An empty URL only
// publishes a notice and returns an empty path with no error. On any other
// failure the user is told and the original URL is opened as a fallback.
func (d *Downloader) Download(ctx context.Context, imageURL string, historyID int64) (string, error) {
	if imageURL == "" {
		d.publisher.Notice(noticeNoImage)
		return "", nil
	}

	path, err := d.fetchToFile(ctx, imageURL, historyID)
	if err != nil {
		d.logger.Error("[downloader.Download] download failed",
			slog.Int64("history_id", historyID),
			slog.String("error", err.Error()),
		)
		d.publisher.Notice(fmt.Sprintf("Download failed: %v. This might be a CORS issue. Opening image in a new tab as a fallback.", err))
		if openErr := d.opener.Open(ctx, imageURL); openErr != nil {
			d.logger.Warn("[downloader.Download] fallback open failed",
				slog.String("error", openErr.Error()))
		}
		return "", fmt.Errorf("download image for history %d: %w", historyID, err)
	}

	d.logger.Info("[downloader.Download] image saved",
		slog.Int64("history_id", historyID),
		slog.String("path", path),
	)
	return path, nil
}

func (d *Downloader) fetchToFile(ctx context.Context, imageURL string, historyID int64) (string, error) {
	u, err := url.Parse(imageURL)
	if err != nil {
		return "", fmt.Errorf("invalid image url: %w", err)
	}
	// The existing query is kept byte for byte; presigned URLs depend on it.
	bust := "time=" + strconv.FormatInt(d.now().UnixMilli(), 10)
	if u.RawQuery == "" {
		u.RawQuery = bust
	} else {
		u.RawQuery += "&" + bust
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("network response was not ok (status %d)", resp.StatusCode)
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	// Stream into a hidden temp file, then rename into place; the temp file
	// never outlives this call.
	tmpPath := filepath.Join(d.dir, "."+uuid.NewString()+".part")
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmpPath)

	_, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}

	finalPath := filepath.Join(d.dir, d.FileName(historyID))
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	return finalPath, nil
}
