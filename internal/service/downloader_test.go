package service_test

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dom/blueming-client/internal/events"
	"github.com/dom/blueming-client/internal/logger"
	"github.com/dom/blueming-client/internal/service"
	"github.com/dom/blueming-client/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake-image-bytes")

type recordingOpener struct {
	mu     sync.Mutex
	opened []string
}

func (o *recordingOpener) Open(_ context.Context, rawURL string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, rawURL)
	return nil
}

func TestDownloader_EmptyURL(t *testing.T) {
	app := testutil.NewTestApp(t, nil)
	ch, cancel := app.Bus.Subscribe(8)
	defer cancel()

	path, err := app.Services.History.DownloadImage(context.Background(), "", 1)

	require.NoError(t, err, "an entry without an image is not a failure")
	assert.Empty(t, path)
	notice := testutil.ExpectEvent(t, ch, events.TopicNotice, time.Second)
	assert.Equal(t, events.Notice{Message: "No image available for download."}, notice.Payload)
	assert.Zero(t, app.Gateway.Calls(testutil.OpImage), "no network request for an empty url")
}

func TestDownloader_SavesImage(t *testing.T) {
	app := testutil.NewTestApp(t, nil)
	app.Gateway.SetImage("a.png", pngBytes)

	path, err := app.Services.History.DownloadImage(context.Background(), app.Gateway.ImageURL("a.png"), 42)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(app.Config.DownloadDir, "blueming_ai_history_42.png"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)

	entries, err := os.ReadDir(app.Config.DownloadDir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file must not outlive the download")

	q, err := url.ParseQuery(app.Gateway.LastImageQuery())
	require.NoError(t, err)
	assert.NotEmpty(t, q.Get("time"), "cache-busting parameter is added")
}

func TestDownloader_CacheBustKeepsExistingQuery(t *testing.T) {
	dir := t.TempDir()
	app := testutil.NewTestApp(t, nil)
	app.Gateway.SetImage("b.png", pngBytes)
	fixed := time.UnixMilli(1767225600000)

	d := service.NewDownloader(app.Bus, service.DownloaderOptions{
		HTTPClient: app.Gateway.Server.Client(),
		Dir:        dir,
		Prefix:     "custom",
		Logger:     logger.Discard(),
		Now:        func() time.Time { return fixed },
	})

	path, err := d.Download(context.Background(), app.Gateway.ImageURL("b.png")+"?size=large", 7)
	require.NoError(t, err)
	assert.Equal(t, "custom_history_7.png", filepath.Base(path))

	assert.Equal(t, "size=large&time=1767225600000", app.Gateway.LastImageQuery())
}

func TestDownloader_CacheBustKeepsRawQueryBytes(t *testing.T) {
	app := testutil.NewTestApp(t, nil)
	app.Gateway.SetImage("signed.png", pngBytes)
	fixed := time.UnixMilli(1767225600000)

	d := service.NewDownloader(app.Bus, service.DownloaderOptions{
		HTTPClient: app.Gateway.Server.Client(),
		Dir:        t.TempDir(),
		Logger:     logger.Discard(),
		Now:        func() time.Time { return fixed },
	})

	tests := []struct {
		name      string
		query     string
		wantQuery string
	}{
		{name: "no query", query: "", wantQuery: "time=1767225600000"},
		{name: "trailing question mark", query: "?", wantQuery: "time=1767225600000"},
		{
			name:      "order and escaping survive",
			query:     "?z=1&X-Amz-Signature=ab%2Fcd%3D&a=2",
			wantQuery: "z=1&X-Amz-Signature=ab%2Fcd%3D&a=2&time=1767225600000",
		},
		{
			name:      "malformed pair is not dropped",
			query:     "?bad=%zz&ok=1",
			wantQuery: "bad=%zz&ok=1&time=1767225600000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Download(context.Background(), app.Gateway.ImageURL("signed.png")+tt.query, 1)
			require.NoError(t, err)
			assert.Equal(t, tt.wantQuery, app.Gateway.LastImageQuery())
		})
	}
}

func TestDownloader_FailureFallsBackToOpen(t *testing.T) {
	dir := t.TempDir()
	app := testutil.NewTestApp(t, nil)
	ch, cancel := app.Bus.Subscribe(8)
	defer cancel()
	opener := &recordingOpener{}

	d := service.NewDownloader(app.Bus, service.DownloaderOptions{
		HTTPClient: app.Gateway.Server.Client(),
		Dir:        dir,
		Opener:     opener,
		Logger:     logger.Discard(),
	})

	missing := app.Gateway.ImageURL("missing.png")
	path, err := d.Download(context.Background(), missing, 3)

	require.Error(t, err)
	assert.Empty(t, path)
	assert.Contains(t, err.Error(), "status 404")

	notice := testutil.ExpectEvent(t, ch, events.TopicNotice, time.Second)
	msg := notice.Payload.(events.Notice).Message
	assert.True(t, strings.HasPrefix(msg, "Download failed: "), msg)
	assert.Contains(t, msg, "This might be a CORS issue. Opening image in a new tab as a fallback.")

	assert.Equal(t, []string{missing}, opener.opened, "the original url is opened, without cache-busting")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownloader_DefaultOpenerPublishesOpenURL(t *testing.T) {
	app := testutil.NewTestApp(t, nil)
	ch, cancel := app.Bus.Subscribe(8, events.TopicOpenURL)
	defer cancel()

	missing := app.Gateway.ImageURL("missing.png")
	_, err := app.Services.History.DownloadImage(context.Background(), missing, 3)
	require.Error(t, err)

	evt := testutil.ExpectEvent(t, ch, events.TopicOpenURL, time.Second)
	assert.Equal(t, events.OpenURL{URL: missing}, evt.Payload)
}

func TestDownloader_SafeClientRefusesLoopback(t *testing.T) {
	app := testutil.NewTestApp(t, nil)
	app.Gateway.SetImage("a.png", pngBytes)
	opener := &recordingOpener{}

	d := service.NewDownloader(app.Bus, service.DownloaderOptions{
		HTTPClient: service.NewSafeDownloadClient(time.Second),
		Dir:        t.TempDir(),
		Opener:     opener,
		Logger:     logger.Discard(),
	})

	_, err := d.Download(context.Background(), app.Gateway.ImageURL("a.png"), 1)
	require.Error(t, err)
	assert.Zero(t, app.Gateway.Calls(testutil.OpImage))
	assert.Len(t, opener.opened, 1)
}

func TestDownloader_FileName(t *testing.T) {
	d := service.NewDownloader(nil, service.DownloaderOptions{})
	assert.Equal(t, "blueming_ai_history_123.png", d.FileName(123))
}
