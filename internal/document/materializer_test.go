package document

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/tagfeed-harvester/internal/assets"
	"github.com/JakeFAU/tagfeed-harvester/internal/crawler"
	"github.com/JakeFAU/tagfeed-harvester/internal/hash/sha256"
	"github.com/JakeFAU/tagfeed-harvester/internal/index"
	pubmemory "github.com/JakeFAU/tagfeed-harvester/internal/publisher/memory"
	"github.com/JakeFAU/tagfeed-harvester/internal/storage/memory"
)

const (
	docURL   = "https://medium.com/@jane/my-post-abc123"
	imageURL = "https://cdn.example.com/img/c.png"
)

type stubFetcher struct {
	mu        sync.Mutex
	responses map[string]crawler.FetchResponse
	errs      map[string]error
	calls     []string
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		responses: make(map[string]crawler.FetchResponse),
		errs:      make(map[string]error),
	}
}

func (f *stubFetcher) page(url, body string) {
	f.responses[url] = crawler.FetchResponse{
		URL:        url,
		StatusCode: http.StatusOK,
		Headers:    http.Header{"Content-Type": {"text/html; charset=utf-8"}},
		Body:       []byte(body),
	}
}

func (f *stubFetcher) image(url, contentType string) {
	f.responses[url] = crawler.FetchResponse{
		URL:        url,
		StatusCode: http.StatusOK,
		Headers:    http.Header{"Content-Type": {contentType}},
		Body:       []byte("\x89PNG"),
	}
}

func (f *stubFetcher) Get(_ context.Context, url string) (crawler.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err := f.errs[url]; err != nil {
		return crawler.FetchResponse{}, err
	}
	resp, ok := f.responses[url]
	if !ok {
		return crawler.FetchResponse{}, &crawler.TransportError{Kind: crawler.KindStatus, URL: url, StatusCode: http.StatusNotFound}
	}
	return resp, nil
}

type fixedNonce string

func (n fixedNonce) Nonce() (string, error) { return string(n), nil }

type recordingLedger struct {
	records []crawler.DocumentRecord
	err     error
}

func (l *recordingLedger) RecordDocument(_ context.Context, r crawler.DocumentRecord) error {
	l.records = append(l.records, r)
	return l.err
}

type fixture struct {
	fetcher   *stubFetcher
	store     *memory.BlobStore
	index     *index.Index
	ledger    *recordingLedger
	publisher *pubmemory.Publisher
	m         *Materializer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		fetcher:   newStubFetcher(),
		store:     memory.NewBlobStore(),
		index:     index.New(),
		ledger:    &recordingLedger{},
		publisher: pubmemory.New(),
	}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f.m = New(
		Config{},
		f.fetcher,
		f.store,
		f.index,
		assets.NewExtractor(fixedNonce("0123456789ab")),
		sha256.New(),
		crawler.ClockFunc(func() time.Time { return now }),
		nil,
	)
	f.m.SetLedger(f.ledger)
	f.m.SetPublisher(f.publisher)
	return f
}

const articleHTML = `<html><head><title>x</title></head><body>
<nav>menu</nav>
<article>
<h1>My Post</h1>
<p>Some <strong>bold</strong> words.</p>
<figure><picture><source srcset="https://cdn.example.com/img/a.png 400w, https://cdn.example.com/img/c.png 1600w"><img src="https://cdn.example.com/img/a.png"></picture><figcaption>A chart</figcaption></figure>
<p>After the figure.</p>
</article>
<footer>bye</footer>
</body></html>`

var partition = crawler.Partition{Tag: "go", Bucket: "0-499"}

func assetName(t *testing.T, url string) string {
	t.Helper()
	h, err := sha256.New().Hash([]byte(url))
	require.NoError(t, err)
	return h
}

func TestMaterializeWritesDocumentAndAssets(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.fetcher.page(docURL, articleHTML)
	f.fetcher.image(imageURL, "image/png")

	outcome, err := f.m.Materialize(crawler.WithRunID(context.Background(), "run-1"), docURL, partition)
	require.NoError(t, err)
	assert.Equal(t, crawler.OutcomeWritten, outcome)

	body, ok := f.store.Object("go/0-499/my-post-abc123/my-post-abc123.md")
	require.True(t, ok)
	md := string(body)
	imageFile := assetName(t, imageURL) + ".png"
	assert.Contains(t, md, "# My Post")
	assert.Contains(t, md, "**bold**")
	assert.Contains(t, md, "![](images/"+imageFile+")")
	assert.Contains(t, md, "A chart")
	assert.NotContains(t, md, "asset0123456789ab")
	assert.NotContains(t, md, "menu")
	assert.NotContains(t, md, "bye")
	assert.NotContains(t, md, "\n\n\n")
	assert.Less(t, strings.Index(md, "bold"), strings.Index(md, "![](images/"))
	assert.Less(t, strings.Index(md, "![](images/"), strings.Index(md, "After the figure."))

	_, ok = f.store.Object("go/0-499/my-post-abc123/images/" + imageFile)
	assert.True(t, ok)
	assert.True(t, f.index.Contains("my-post-abc123"))

	require.Len(t, f.ledger.records, 1)
	rec := f.ledger.records[0]
	assert.Equal(t, "run-1", rec.RunID)
	assert.Equal(t, "my-post-abc123", rec.Identity)
	assert.Equal(t, 1, rec.Assets)
	assert.Zero(t, rec.AssetsLost)
	assert.Equal(t, "memory://go/0-499/my-post-abc123/my-post-abc123.md", rec.Location)

	msgs := f.publisher.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, DefaultEvent, msgs[0].Event)
	var published crawler.DocumentRecord
	require.NoError(t, msgs[0].Decode(&published))
	assert.Equal(t, "my-post-abc123", published.Identity)
	assert.Equal(t, "go", published.Tag)
}

func TestMaterializeSkipsKnownIdentity(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.index.Record("My-Post-ABC123")
	f.fetcher.page(docURL, articleHTML)

	outcome, err := f.m.Materialize(context.Background(), docURL, crawler.Partition{Tag: "other", Bucket: "0"})
	require.NoError(t, err)
	assert.Equal(t, crawler.OutcomeSkipped, outcome)
	assert.Empty(t, f.fetcher.calls)
	assert.Empty(t, f.store.Paths())
}

func TestMaterializeNotFound(t *testing.T) {
	t.Parallel()

	t.Run("status", func(t *testing.T) {
		f := newFixture(t)
		outcome, err := f.m.Materialize(context.Background(), docURL, partition)
		require.NoError(t, err)
		assert.Equal(t, crawler.OutcomeNotFound, outcome)
		assert.False(t, f.index.Contains("my-post-abc123"))
	})

	t.Run("no content region", func(t *testing.T) {
		f := newFixture(t)
		f.fetcher.page(docURL, "<html><body><div>paywall</div></body></html>")
		outcome, err := f.m.Materialize(context.Background(), docURL, partition)
		require.NoError(t, err)
		assert.Equal(t, crawler.OutcomeNotFound, outcome)
		assert.Empty(t, f.store.Paths())
	})

	t.Run("no slug", func(t *testing.T) {
		f := newFixture(t)
		outcome, err := f.m.Materialize(context.Background(), "https://medium.com/", partition)
		require.NoError(t, err)
		assert.Equal(t, crawler.OutcomeNotFound, outcome)
		assert.Empty(t, f.fetcher.calls)
	})
}

func TestMaterializeDropsFailedAssets(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.fetcher.page(docURL, articleHTML)
	f.fetcher.errs[imageURL] = &crawler.TransportError{Kind: crawler.KindNetwork, URL: imageURL, Err: errors.New("reset")}

	outcome, err := f.m.Materialize(context.Background(), docURL, partition)
	require.NoError(t, err)
	assert.Equal(t, crawler.OutcomeWritten, outcome)

	body, ok := f.store.Object("go/0-499/my-post-abc123/my-post-abc123.md")
	require.True(t, ok)
	md := string(body)
	assert.NotContains(t, md, "![](")
	assert.NotContains(t, md, "asset0123456789ab")
	assert.Contains(t, md, "After the figure.")
	require.Len(t, f.ledger.records, 1)
	assert.Equal(t, 1, f.ledger.records[0].AssetsLost)
}

func TestMaterializeDropsLinkAroundFailedAsset(t *testing.T) {
	t.Parallel()

	const linked = `<html><body><article>
<p>Intro.</p>
<a href="https://cdn.example.com/img/full.png"><figure><img srcset="https://cdn.example.com/img/c.png 1600w"></figure></a>
<p>Outro.</p>
</article></body></html>`

	f := newFixture(t)
	f.fetcher.page(docURL, linked)
	f.fetcher.errs[imageURL] = &crawler.TransportError{Kind: crawler.KindNetwork, URL: imageURL, Err: errors.New("reset")}

	outcome, err := f.m.Materialize(context.Background(), docURL, partition)
	require.NoError(t, err)
	assert.Equal(t, crawler.OutcomeWritten, outcome)

	body, ok := f.store.Object("go/0-499/my-post-abc123/my-post-abc123.md")
	require.True(t, ok)
	md := string(body)
	assert.NotContains(t, md, "[](")
	assert.NotContains(t, md, "full.png")
	assert.Contains(t, md, "Intro.")
	assert.Contains(t, md, "Outro.")
}

func TestMaterializeWriteFailureLeavesIndexUntouched(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.fetcher.page(docURL, articleHTML)
	f.fetcher.image(imageURL, "image/png")
	f.store.FailOn("go/0-499/my-post-abc123/my-post-abc123.md", errors.New("disk full"))

	outcome, err := f.m.Materialize(context.Background(), docURL, partition)
	require.ErrorContains(t, err, "disk full")
	assert.Empty(t, outcome)
	assert.False(t, f.index.Contains("my-post-abc123"))
	assert.Empty(t, f.ledger.records)
	assert.Empty(t, f.publisher.Messages())
}

func TestMaterializeSideChannelFailuresAreIgnored(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.fetcher.page(docURL, articleHTML)
	f.fetcher.image(imageURL, "image/png")
	f.ledger.err = errors.New("db down")
	f.publisher.FailWith(errors.New("topic gone"))

	outcome, err := f.m.Materialize(context.Background(), docURL, partition)
	require.NoError(t, err)
	assert.Equal(t, crawler.OutcomeWritten, outcome)
	assert.True(t, f.index.Contains("my-post-abc123"))
}

func TestMaterializeCancelledFetch(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.fetcher.errs[docURL] = context.Canceled

	_, err := f.m.Materialize(ctx, docURL, partition)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMaterializeWithoutOptionalSideChannels(t *testing.T) {
	t.Parallel()

	fetcher := newStubFetcher()
	fetcher.page(docURL, `<article><p>plain</p></article>`)
	store := memory.NewBlobStore()
	m := New(Config{}, fetcher, store, index.New(), assets.NewExtractor(fixedNonce("aa")), sha256.New(), nil, nil)

	outcome, err := m.Materialize(context.Background(), docURL, crawler.Partition{Tag: "go", Bucket: "0"})
	require.NoError(t, err)
	assert.Equal(t, crawler.OutcomeWritten, outcome)
	body, ok := store.Object("go/0/my-post-abc123/my-post-abc123.md")
	require.True(t, ok)
	assert.Equal(t, "plain\n", string(body))
}
