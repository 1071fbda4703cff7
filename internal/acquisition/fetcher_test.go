package acquisition

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/snonux/pinphotos/internal/errs"
	"codeberg.org/snonux/pinphotos/internal/store"
	"codeberg.org/snonux/pinphotos/internal/testutil"
)

type fakeDownloader struct {
	mu          sync.Mutex
	data        map[string][]byte
	calls       int
	inFlight    int
	maxInFlight int
	delay       time.Duration
	onDownload  func(url string)
}

func newFakeDownloader() *fakeDownloader {
	return &fakeDownloader{data: make(map[string][]byte)}
}

func (d *fakeDownloader) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	d.mu.Lock()
	d.calls++
	d.inFlight++
	d.maxInFlight = max(d.maxInFlight, d.inFlight)
	data, ok := d.data[url]
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.inFlight--
		d.mu.Unlock()
	}()

	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	if d.onDownload != nil {
		d.onDownload(url)
	}
	if !ok {
		return nil, errors.New("connection refused")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func createPhotos(t *testing.T, st store.Store, urls ...string) (*store.Pin, []*store.Photo) {
	t.Helper()
	ctx := context.Background()

	pin, err := st.CreatePin(ctx, 42.5, 23.25)
	require.NoError(t, err)
	photos, err := st.CreatePhotos(ctx, pin.ID, urls)
	require.NoError(t, err)
	return pin, photos
}

func TestFetchAttachesImage(t *testing.T) {
	ctx := context.Background()
	srv := testutil.NewFlickrServer(t)
	p, st, client := newServerPipeline(t, srv)

	pin, err := st.CreatePin(ctx, 0, 0)
	require.NoError(t, err)
	photos, err := p.Acquire(ctx, pin)
	require.NoError(t, err)

	f := NewFetcher(client, st, nil, nil)
	out := f.Fetch(ctx, photos[0])
	require.True(t, out.Success, "fetch failed: %s", out.ErrorMessage())
	assert.False(t, out.Skipped)
	assert.Equal(t, photos[0].ID, out.PhotoID)
	assert.Empty(t, out.ErrorMessage())
	assert.Equal(t, testutil.JPEGData(), photos[0].Image)

	stored, err := st.GetPhoto(ctx, photos[0].ID)
	require.NoError(t, err)
	assert.Equal(t, testutil.JPEGData(), stored.Image)
}

func TestFetchFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	srv := testutil.NewFlickrServer(t)
	srv.SetFailImage("bad.jpg")
	_, st, client := newServerPipeline(t, srv)

	_, photos := createPhotos(t, st, srv.ImageURL("bad.jpg"), srv.ImageURL("good.jpg"))
	f := NewFetcher(client, st, nil, nil)

	badCh := f.FetchAsync(ctx, photos[0])
	goodCh := f.FetchAsync(ctx, photos[1])
	bad, good := <-badCh, <-goodCh

	assert.False(t, bad.Success)
	assert.True(t, errors.Is(bad.Err, errs.ErrDownload), "got %v", bad.Err)
	assert.Contains(t, bad.ErrorMessage(), "unable to download image from URL")

	assert.True(t, good.Success, "sibling fetch failed: %s", good.ErrorMessage())

	storedBad, err := st.GetPhoto(ctx, photos[0].ID)
	require.NoError(t, err)
	assert.True(t, storedBad.Pending(), "failed fetch must leave the image absent")

	storedGood, err := st.GetPhoto(ctx, photos[1].ID)
	require.NoError(t, err)
	assert.Equal(t, testutil.JPEGData(), storedGood.Image)
}

func TestFetchSkipsMaterializedPhoto(t *testing.T) {
	ctx := context.Background()
	st := testutil.OpenTestStore(t)
	d := newFakeDownloader()
	d.data["https://live.example.com/a.jpg"] = testutil.PNGData()

	_, photos := createPhotos(t, st, "https://live.example.com/a.jpg")
	f := NewFetcher(d, st, nil, nil)

	first := f.Fetch(ctx, photos[0])
	require.True(t, first.Success)
	second := f.Fetch(ctx, photos[0])
	assert.True(t, second.Success)
	assert.True(t, second.Skipped)
	assert.Equal(t, 1, d.calls, "a photo with an image must not be downloaded again")
}

func TestFetchDoesNotOverwriteConcurrentImage(t *testing.T) {
	ctx := context.Background()
	st := testutil.OpenTestStore(t)
	d := newFakeDownloader()
	d.data["https://live.example.com/a.jpg"] = testutil.PNGData()

	_, photos := createPhotos(t, st, "https://live.example.com/a.jpg")
	// a stale copy still believes the photo is pending
	stale := *photos[0]

	f := NewFetcher(d, st, nil, nil)
	require.True(t, f.Fetch(ctx, photos[0]).Success)

	out := f.Fetch(ctx, &stale)
	assert.True(t, out.Success)
	assert.True(t, out.Skipped)
	assert.Equal(t, 1, d.calls, "a stale copy must not trigger a second download")
}

func TestFetchDeletedPhotoIsNotDownloaded(t *testing.T) {
	ctx := context.Background()
	st := testutil.OpenTestStore(t)
	d := newFakeDownloader()
	d.data["https://live.example.com/a.jpg"] = testutil.JPEGData()

	_, photos := createPhotos(t, st, "https://live.example.com/a.jpg")
	_, err := st.DeletePhotos(ctx, photos[0].ID)
	require.NoError(t, err)

	out := NewFetcher(d, st, nil, nil).Fetch(ctx, photos[0])
	assert.True(t, out.Success)
	assert.True(t, out.Skipped)
	assert.Equal(t, 0, d.calls)
}

func TestFetchRejectsBadPayloads(t *testing.T) {
	tcs := []struct {
		name    string
		data    []byte
		options *FetchOptions
	}{
		{"empty", []byte{}, nil},
		{"html", []byte("<html><body>rate limited</body></html>"), nil},
		{"too large", testutil.JPEGData(), &FetchOptions{MaxSizeBytes: 4, Concurrency: 1, RequireImage: true}},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			st := testutil.OpenTestStore(t)
			d := newFakeDownloader()
			d.data["https://live.example.com/x.jpg"] = tc.data

			_, photos := createPhotos(t, st, "https://live.example.com/x.jpg")
			out := NewFetcher(d, st, tc.options, nil).Fetch(ctx, photos[0])

			assert.False(t, out.Success)
			assert.True(t, errors.Is(out.Err, errs.ErrDownload), "got %v", out.Err)
			assert.Nil(t, photos[0].Image)

			stored, err := st.GetPhoto(ctx, photos[0].ID)
			require.NoError(t, err)
			assert.True(t, stored.Pending())
		})
	}
}

func TestFetchAcceptsAnyPayloadWhenNotRequired(t *testing.T) {
	ctx := context.Background()
	st := testutil.OpenTestStore(t)
	d := newFakeDownloader()
	d.data["https://live.example.com/x"] = []byte("plain bytes")

	_, photos := createPhotos(t, st, "https://live.example.com/x")
	opts := DefaultFetchOptions()
	opts.RequireImage = false

	out := NewFetcher(d, st, opts, nil).Fetch(ctx, photos[0])
	assert.True(t, out.Success, out.ErrorMessage())
}

func TestFetchPhotoDeletedMidFlight(t *testing.T) {
	ctx := context.Background()
	st := testutil.OpenTestStore(t)
	d := newFakeDownloader()
	d.data["https://live.example.com/a.jpg"] = testutil.JPEGData()

	pin, photos := createPhotos(t, st, "https://live.example.com/a.jpg")
	d.onDownload = func(string) {
		require.NoError(t, st.DeletePin(ctx, pin.ID))
	}

	out := NewFetcher(d, st, nil, nil).Fetch(ctx, photos[0])
	assert.True(t, out.Success)
	assert.True(t, out.Skipped)
	assert.NoError(t, out.Err)

	_, err := st.GetPhoto(ctx, photos[0].ID)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestFetchPending(t *testing.T) {
	ctx := context.Background()
	st := testutil.OpenTestStore(t)
	d := newFakeDownloader()
	urls := []string{
		"https://live.example.com/1.jpg",
		"https://live.example.com/2.jpg",
		"https://live.example.com/3.jpg",
		"https://live.example.com/4.jpg",
		"https://live.example.com/5.jpg",
	}
	for _, u := range urls[1:] {
		d.data[u] = testutil.JPEGData()
	}
	pin, photos := createPhotos(t, st, urls...)

	f := NewFetcher(d, st, nil, nil)
	outcomes, err := f.FetchPending(ctx, pin.ID)
	require.NoError(t, err)
	require.Len(t, outcomes, 5)

	assert.Equal(t, photos[0].ID, outcomes[0].PhotoID)
	assert.False(t, outcomes[0].Success)
	for _, out := range outcomes[1:] {
		assert.True(t, out.Success, out.ErrorMessage())
	}

	pending, err := st.ListPhotos(ctx, store.PhotoFilter{PinID: pin.ID, PendingOnly: true})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, photos[0].ID, pending[0].ID)

	d.mu.Lock()
	d.data[urls[0]] = testutil.JPEGData()
	d.mu.Unlock()

	retry, err := f.FetchPending(ctx, pin.ID)
	require.NoError(t, err)
	require.Len(t, retry, 1)
	assert.True(t, retry[0].Success)
}

func TestFetchAllRespectsConcurrency(t *testing.T) {
	ctx := context.Background()
	st := testutil.OpenTestStore(t)
	d := newFakeDownloader()
	d.delay = 10 * time.Millisecond

	urls := make([]string, 12)
	for i := range urls {
		urls[i] = "https://live.example.com/" + string(rune('a'+i)) + ".jpg"
		d.data[urls[i]] = testutil.JPEGData()
	}
	_, photos := createPhotos(t, st, urls...)

	opts := DefaultFetchOptions()
	opts.Concurrency = 3
	outcomes := NewFetcher(d, st, opts, nil).FetchAll(ctx, photos)

	require.Len(t, outcomes, len(photos))
	for i, out := range outcomes {
		assert.Equal(t, photos[i].ID, out.PhotoID)
		assert.True(t, out.Success, out.ErrorMessage())
	}
	assert.LessOrEqual(t, d.maxInFlight, 3)
	assert.Greater(t, d.maxInFlight, 1, "downloads should overlap")
}
