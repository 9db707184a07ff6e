package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arpitbanna/url-shortener/internal/counter"
	"github.com/arpitbanna/url-shortener/internal/fraud"
	"github.com/arpitbanna/url-shortener/internal/models"
	"github.com/arpitbanna/url-shortener/internal/sequence"
)

type bucket struct {
	clicks     int64
	suspicious int64
	uniques    int64
}

// fakeRepo implements interfaces.ClickRepo and interfaces.SequenceRepo in
// memory, mirroring the additive upsert semantics of the real store.
type fakeRepo struct {
	mu sync.Mutex

	clicks           []*models.ClickRecord
	suspiciousClicks []*models.SuspiciousClick
	lifetime         map[string]int64
	buckets          map[string]bucket
	referrers        map[string]int64
	sequences        map[string][]string

	insertClickFailures int
	insertClickAttempts int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		lifetime:  make(map[string]int64),
		buckets:   make(map[string]bucket),
		referrers: make(map[string]int64),
		sequences: make(map[string][]string),
	}
}

var errTransient = errors.New("storage unavailable")

func (f *fakeRepo) InsertClick(_ context.Context, click *models.ClickRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.insertClickAttempts++
	if f.insertClickFailures > 0 {
		f.insertClickFailures--
		return errTransient
	}
	f.clicks = append(f.clicks, click)
	f.lifetime[click.URLID]++
	return nil
}

func (f *fakeRepo) InsertSuspiciousClick(_ context.Context, click *models.SuspiciousClick) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suspiciousClicks = append(f.suspiciousClicks, click)
	return nil
}

func (f *fakeRepo) UpsertHourly(_ context.Context, urlID, fp string, hour time.Time, suspicious bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Mirror the real store: a fingerprint counts as unique only while no
	// click row for it exists yet.
	seen := false
	for _, c := range f.clicks {
		if c.URLID == urlID && c.Fingerprint == fp {
			seen = true
			break
		}
	}

	key := fmt.Sprintf("%s|%s", urlID, hour.Format(time.RFC3339))
	b := f.buckets[key]
	b.clicks++
	if !seen {
		b.uniques++
	}
	if suspicious {
		b.suspicious++
	}
	f.buckets[key] = b
	return nil
}

func (f *fakeRepo) IncrementReferrer(_ context.Context, urlID, referrer string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.referrers[urlID+"|"+referrer]++
	return nil
}

func (f *fakeRepo) GetSequence(_ context.Context, fp string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sequences[fp], nil
}

func (f *fakeRepo) SaveSequence(_ context.Context, fp string, seq []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sequences[fp] = seq
	return nil
}

func newTestService(repo *fakeRepo) *ClickService {
	store := counter.NewMemoryStore()
	engine := fraud.NewEngine(store, fraud.Config{}, nil)
	tracker := sequence.NewTracker(repo, 10)

	return NewClickService(repo, engine, tracker, nil, nil, Config{
		Workers:    4,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
	})
}

func testEvent(code string) *models.ClickEvent {
	return &models.ClickEvent{
		EventID:   "ev-" + code,
		URLID:     "u1",
		Code:      code,
		IPAddress: "1.2.3.4",
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64)",
		Referrer:  "https://example.com",
		Timestamp: time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC),
	}
}

func TestRecordNormalPath(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	defer svc.Shutdown(context.Background())

	ev := testEvent("abc12345")
	require.NoError(t, svc.Record(context.Background(), ev, "fp1", false))

	require.Len(t, repo.clicks, 1)
	assert.Equal(t, "u1", repo.clicks[0].URLID)
	assert.Equal(t, "fp1", repo.clicks[0].Fingerprint)
	assert.Empty(t, repo.suspiciousClicks)
	assert.Equal(t, int64(1), repo.lifetime["u1"])

	b := repo.buckets["u1|2024-01-01T10:00:00Z"]
	assert.Equal(t, int64(1), b.clicks)
	assert.Equal(t, int64(0), b.suspicious)

	assert.Equal(t, int64(1), repo.referrers["u1|https://example.com"])
	assert.Equal(t, []string{"abc12345"}, repo.sequences["fp1"])
}

func TestUniqueVisitorsCountFirstSightOnly(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	defer svc.Shutdown(context.Background())
	ctx := context.Background()

	ev := testEvent("abc12345")
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Record(ctx, ev, "fp1", false))
	}
	require.NoError(t, svc.Record(ctx, ev, "fp2", false))

	b := repo.buckets["u1|2024-01-01T10:00:00Z"]
	assert.Equal(t, int64(4), b.clicks)
	assert.Equal(t, int64(2), b.uniques, "repeat clicks by a fingerprint count once")
}

func TestUniqueVisitorsIgnoreReturningSuspiciousClicks(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	defer svc.Shutdown(context.Background())
	ctx := context.Background()

	ev := testEvent("abc12345")
	require.NoError(t, svc.Record(ctx, ev, "fp1", false))
	require.NoError(t, svc.Record(ctx, ev, "fp1", true))

	b := repo.buckets["u1|2024-01-01T10:00:00Z"]
	assert.Equal(t, int64(1), b.uniques)
}

func TestRecordSuspiciousPath(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	defer svc.Shutdown(context.Background())

	ev := testEvent("abc12345")
	require.NoError(t, svc.Record(context.Background(), ev, "fp1", true))

	require.Len(t, repo.suspiciousClicks, 1)
	assert.Equal(t, SuspiciousReason, repo.suspiciousClicks[0].Reason)
	assert.Equal(t, "abc12345", repo.suspiciousClicks[0].URLCode)
	assert.Equal(t, "fp1", repo.suspiciousClicks[0].Fingerprint)

	// The suspicious path never advances the lifetime counter.
	assert.Empty(t, repo.clicks)
	assert.Equal(t, int64(0), repo.lifetime["u1"])

	b := repo.buckets["u1|2024-01-01T10:00:00Z"]
	assert.Equal(t, int64(1), b.clicks)
	assert.Equal(t, int64(1), b.suspicious)
}

func TestHourlyBucketMixedClicks(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	defer svc.Shutdown(context.Background())
	ctx := context.Background()

	ev := testEvent("abc12345")
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Record(ctx, ev, fmt.Sprintf("fp%d", i), false))
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, svc.Record(ctx, ev, fmt.Sprintf("fp%d", i), true))
	}

	b := repo.buckets["u1|2024-01-01T10:00:00Z"]
	assert.Equal(t, int64(5), b.clicks)
	assert.Equal(t, int64(2), b.suspicious)
	assert.GreaterOrEqual(t, b.clicks, b.suspicious)
}

func TestHandleEventRunsBothJobs(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	svc.HandleEvent(context.Background(), testEvent("abc12345"))
	require.NoError(t, svc.Shutdown(context.Background()))

	// The click-log job persisted the click; the fraud-check job found a
	// single benign click and recorded nothing.
	assert.Len(t, repo.clicks, 1)
	assert.Empty(t, repo.suspiciousClicks)

	m := svc.GetMetrics()
	assert.Equal(t, int64(2), m.TotalProcessed)
	assert.Equal(t, int64(0), m.TotalFailed)
}

func TestRetryRecoversFromTransientFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.insertClickFailures = 2
	svc := newTestService(repo)

	svc.HandleEvent(context.Background(), testEvent("abc12345"))
	require.NoError(t, svc.Shutdown(context.Background()))

	assert.Equal(t, 3, repo.insertClickAttempts)
	assert.Len(t, repo.clicks, 1)

	m := svc.GetMetrics()
	assert.Equal(t, int64(0), m.TotalFailed)
}

func TestRetryExhaustionDropsEvent(t *testing.T) {
	repo := newFakeRepo()
	repo.insertClickFailures = 100
	svc := newTestService(repo)

	svc.HandleEvent(context.Background(), testEvent("abc12345"))
	require.NoError(t, svc.Shutdown(context.Background()))

	// Bounded retry: the task is abandoned after the configured attempts
	// and the event is lost, surfaced only to operators.
	assert.Equal(t, 3, repo.insertClickAttempts)
	assert.Empty(t, repo.clicks)

	m := svc.GetMetrics()
	assert.Equal(t, int64(1), m.TotalFailed)
}

func TestConcurrentEventsKeepCountersConsistent(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, svc.Record(ctx, testEvent("abc12345"), fmt.Sprintf("fp%d", i), i%5 == 0))
		}(i)
	}
	wg.Wait()
	require.NoError(t, svc.Shutdown(ctx))

	b := repo.buckets["u1|2024-01-01T10:00:00Z"]
	assert.Equal(t, int64(n), b.clicks)
	assert.Equal(t, int64(10), b.suspicious)
}
