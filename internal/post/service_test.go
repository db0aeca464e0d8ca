package post

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
	"github.com/rohankatakam/gitbuddy/internal/ipfs"
	"github.com/rohankatakam/gitbuddy/internal/llm"
	"github.com/rohankatakam/gitbuddy/internal/models"
	"github.com/rohankatakam/gitbuddy/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type stubResolver struct {
	result *models.ResolvedCommit
	err    error
}

func (r stubResolver) ResolveLatestCommit(ctx context.Context, identity string, creds models.Credentials) (*models.ResolvedCommit, error) {
	return r.result, r.err
}

type stubSummarizer struct {
	got []llm.SummaryRequest
	out string
	err error
}

func (s *stubSummarizer) Summarize(ctx context.Context, req llm.SummaryRequest) (string, error) {
	s.got = append(s.got, req)
	return s.out, s.err
}

// memPins is an in-memory PinStore
type memPins struct {
	mu      sync.Mutex
	content map[string]interface{}
	pins    []models.Pin
	pinErr  error
	broken  map[string]bool
	seq     int
}

func newMemPins() *memPins {
	return &memPins{content: map[string]interface{}{}, broken: map[string]bool{}}
}

func (m *memPins) PinJSON(ctx context.Context, name string, content interface{}) (*models.PinResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pinErr != nil {
		return nil, m.pinErr
	}
	m.seq++
	hash := fmt.Sprintf("Qm%d", m.seq)
	uid := fmt.Sprintf("uid-%d", m.seq)
	m.content[hash] = content
	m.pins = append(m.pins, models.Pin{
		IPFSHash:   hash,
		Name:       name,
		DatePinned: t0.Add(time.Duration(m.seq) * time.Minute),
		KeyValues:  map[string]string{"uniqueId": uid},
	})
	return &models.PinResult{IPFSHash: hash, UniqueID: uid}, nil
}

func (m *memPins) PinFile(ctx context.Context, filename string, r io.Reader) (*models.PinResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return m.PinJSON(ctx, filename, string(data))
}

func (m *memPins) ListPins(ctx context.Context, q ipfs.ListQuery) ([]models.Pin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]models.Pin(nil), m.pins...)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *memPins) Fetch(ctx context.Context, hash string, out interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken[hash] {
		return apperrors.New(apperrors.KindTransientHost, "gateway timeout")
	}
	c, ok := m.content[hash]
	if !ok {
		return apperrors.New(apperrors.KindNotFound, "no content")
	}
	p, ok := c.(*models.Post)
	if !ok {
		return apperrors.New(apperrors.KindExternal, "not a post")
	}
	*(out.(*models.Post)) = *p
	return nil
}

func (m *memPins) GatewayURL(hash string) string {
	return "https://gateway.test/ipfs/" + hash
}

func (m *memPins) DeleteByUniqueID(ctx context.Context, uid string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.pins {
		if p.KeyValues["uniqueId"] == uid {
			m.pins = append(m.pins[:i], m.pins[i+1:]...)
			delete(m.content, p.IPFSHash)
			return p.IPFSHash, nil
		}
	}
	return "", apperrors.New(apperrors.KindNotFound, "no pin")
}

type stubChain struct {
	calls   int
	receipt *models.Receipt
	err     error
	streak  uint64
}

func (c *stubChain) RecordPost(ctx context.Context) (*models.Receipt, error) {
	c.calls++
	return c.receipt, c.err
}

func (c *stubChain) GetStreak(ctx context.Context) (uint64, error) {
	return c.streak, nil
}

func resolved() *models.ResolvedCommit {
	patch := "@@ -1 +1 @@"
	return &models.ResolvedCommit{
		Repository:    "R2",
		CommitSHA:     "bbbbbbbbbb",
		CommitMessage: "add parser",
		CommitDate:    t0,
		CommitURL:     "https://github.com/alice/R2/commit/bbb",
		Files: []models.FileChange{
			{Filename: "first.go", Status: models.FileModified},
			{Filename: "last.go", Status: models.FileAdded, Patch: &patch},
		},
	}
}

func openIndex(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "posts.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDraft_SummarizesLastFile(t *testing.T) {
	sum := &stubSummarizer{out: "Adds a parser."}
	svc := NewService(stubResolver{result: resolved()}, newMemPins(), WithSummarizer(sum))
	svc.now = func() time.Time { return t0 }

	p, err := svc.Draft(context.Background(), models.Author{Name: "Alice", Email: "a@x.com"}, models.Credentials{Token: "t"})
	require.NoError(t, err)

	require.Len(t, sum.got, 1)
	assert.Equal(t, "last.go", sum.got[0].File.Filename)
	assert.Equal(t, "bbbbbbbbbb", sum.got[0].CommitSHA)
	assert.Equal(t, "Adds a parser.", p.GithubCommit.Summary)
	assert.Equal(t, "Alice", p.UserName)
	assert.Equal(t, "R2", p.GithubCommit.Repository)
	assert.Len(t, p.GithubCommit.Files, 2)
	assert.Equal(t, t0, p.CreatedAt)
}

func TestDraft_SummaryFailureIsNotFatal(t *testing.T) {
	sum := &stubSummarizer{err: apperrors.New(apperrors.KindRateLimited, "quota")}
	svc := NewService(stubResolver{result: resolved()}, newMemPins(), WithSummarizer(sum))

	p, err := svc.Draft(context.Background(), models.Author{Email: "a@x.com"}, models.Credentials{Token: "t"})
	require.NoError(t, err)
	assert.Empty(t, p.GithubCommit.Summary)
	assert.Equal(t, "a@x.com", p.UserName)
}

func TestDraft_CancelledSummaryFails(t *testing.T) {
	sum := &stubSummarizer{err: apperrors.Cancelled(context.Canceled)}
	svc := NewService(stubResolver{result: resolved()}, newMemPins(), WithSummarizer(sum))

	_, err := svc.Draft(context.Background(), models.Author{Email: "a@x.com"}, models.Credentials{Token: "t"})
	assert.ErrorIs(t, err, apperrors.ErrCancelled)
}

func TestDraft_ResolverErrorPassesThrough(t *testing.T) {
	svc := NewService(stubResolver{err: apperrors.New(apperrors.KindNoCommitsFound, "none")}, newMemPins())

	_, err := svc.Draft(context.Background(), models.Author{Email: "a@x.com"}, models.Credentials{Token: "t"})
	assert.ErrorIs(t, err, apperrors.ErrNoCommitsFound)
}

func TestPublish_PinsIndexesAndRecords(t *testing.T) {
	pins := newMemPins()
	index := openIndex(t)
	chain := &stubChain{receipt: &models.Receipt{TxHash: "0xabc", Success: true, StreakCount: big.NewInt(4)}}
	svc := NewService(nil, pins, WithIndex(index), WithStreak(chain))

	p := &models.Post{Email: "a@x.com", GithubCommit: &models.PostCommit{Repository: "R2", SHA: "bbbbbbbbbb", Summary: "s"}}
	result, err := svc.Publish(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, "Qm1", result.Pin.IPFSHash)
	assert.Equal(t, uint64(4), result.Streak)
	assert.Equal(t, 1, chain.calls)
	assert.Equal(t, "gitbuddy-post-R2-bbbbbbb", pins.pins[0].Name)

	rec, err := index.GetPost(context.Background(), "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", rec.TxHash)
	assert.Equal(t, int64(4), rec.Streak)
	assert.Equal(t, "s", rec.Summary)
}

func TestPublish_ReadsStreakWhenEventMissing(t *testing.T) {
	chain := &stubChain{receipt: &models.Receipt{TxHash: "0xabc", Success: true}, streak: 7}
	svc := NewService(nil, newMemPins(), WithStreak(chain))

	result, err := svc.Publish(context.Background(), &models.Post{Email: "a@x.com", GithubCommit: &models.PostCommit{SHA: "b"}})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), result.Streak)
}

func TestPublish_PinFailureSkipsChain(t *testing.T) {
	pins := newMemPins()
	pins.pinErr = apperrors.New(apperrors.KindUnauthorized, "bad jwt")
	chain := &stubChain{}
	svc := NewService(nil, pins, WithStreak(chain))

	_, err := svc.Publish(context.Background(), &models.Post{Email: "a@x.com", GithubCommit: &models.PostCommit{SHA: "b"}})
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Equal(t, 0, chain.calls)
}

func TestPublish_ChainFailureKeepsPin(t *testing.T) {
	chain := &stubChain{err: apperrors.New(apperrors.KindExternal, "reverted")}
	svc := NewService(nil, newMemPins(), WithStreak(chain))

	result, err := svc.Publish(context.Background(), &models.Post{Email: "a@x.com", GithubCommit: &models.PostCommit{SHA: "b"}})
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "Qm1", result.Pin.IPFSHash)
	assert.Nil(t, result.Receipt)
}

// brokenIndex fails every write
type brokenIndex struct {
	storage.Store
}

func (brokenIndex) SavePost(ctx context.Context, post *models.PostRecord) error {
	return apperrors.StorageError(fmt.Errorf("disk full"), "save post")
}

func TestPublish_IndexFailureKeepsPin(t *testing.T) {
	chain := &stubChain{}
	svc := NewService(nil, newMemPins(), WithIndex(brokenIndex{}), WithStreak(chain))

	result, err := svc.Publish(context.Background(), &models.Post{Email: "a@x.com", GithubCommit: &models.PostCommit{SHA: "b"}})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindStorage, apperrors.KindOf(err))
	require.NotNil(t, result)
	assert.Equal(t, "Qm1", result.Pin.IPFSHash)
	assert.Equal(t, "uid-1", result.Pin.UniqueID)
	assert.Nil(t, result.Receipt)
	assert.Equal(t, 0, chain.calls)
}

func TestPublish_RejectsIncompletePost(t *testing.T) {
	svc := NewService(nil, newMemPins())

	_, err := svc.Publish(context.Background(), &models.Post{Email: "a@x.com"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	_, err = svc.Publish(context.Background(), &models.Post{GithubCommit: &models.PostCommit{}})
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestFeed_NewestFirstAndDropsFailures(t *testing.T) {
	pins := newMemPins()
	svc := NewService(nil, pins)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := svc.Publish(ctx, &models.Post{Email: "a@x.com", GithubCommit: &models.PostCommit{SHA: fmt.Sprint(i)}})
		require.NoError(t, err)
	}
	pins.broken["Qm2"] = true
	pins.content["Qm3"] = "not a post"

	feed, err := svc.Feed(ctx, 0)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, "Qm4", feed[0].IPFSHash)
	assert.Equal(t, "Qm1", feed[1].IPFSHash)
	assert.Equal(t, "uid-4", feed[0].UniqueID)
}

func TestShowAndDelete(t *testing.T) {
	pins := newMemPins()
	index := openIndex(t)
	svc := NewService(nil, pins, WithIndex(index))
	ctx := context.Background()

	published, err := svc.Publish(ctx, &models.Post{Email: "a@x.com", GithubCommit: &models.PostCommit{SHA: "b", Repository: "R2"}})
	require.NoError(t, err)

	p, err := svc.Show(ctx, " "+published.Pin.IPFSHash+" ")
	require.NoError(t, err)
	assert.Equal(t, "R2", p.GithubCommit.Repository)

	history, err := svc.History(ctx, "a@x.com", 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	hash, err := svc.Delete(ctx, published.Pin.UniqueID)
	require.NoError(t, err)
	assert.Equal(t, published.Pin.IPFSHash, hash)

	_, err = index.GetPost(ctx, published.Pin.UniqueID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = svc.Delete(ctx, published.Pin.UniqueID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUploadImage(t *testing.T) {
	svc := NewService(nil, newMemPins())

	u, err := svc.UploadImage(context.Background(), "me.png", strings.NewReader("png"))
	require.NoError(t, err)
	assert.Equal(t, "https://gateway.test/ipfs/Qm1", u)
}
