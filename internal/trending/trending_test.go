package trending

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arpitbanna/url-shortener/internal/counter"
	"github.com/arpitbanna/url-shortener/internal/models"
)

type fakeTrendingRepo struct {
	buckets []models.HourlyStats
	codes   map[string]string
	scores  map[string]float64
}

func newFakeTrendingRepo() *fakeTrendingRepo {
	return &fakeTrendingRepo{
		codes:  make(map[string]string),
		scores: make(map[string]float64),
	}
}

func (f *fakeTrendingRepo) RecentHourly(_ context.Context, since time.Time) ([]models.HourlyStats, error) {
	var out []models.HourlyStats
	for _, b := range f.buckets {
		if !b.DateHour.Before(since) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeTrendingRepo) UpdateTrendingScore(_ context.Context, urlID string, score float64) error {
	f.scores[urlID] = score
	return nil
}

func (f *fakeTrendingRepo) CodesByID(_ context.Context, urlIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(urlIDs))
	for _, id := range urlIDs {
		out[id] = f.codes[id]
	}
	return out, nil
}

func testJob(repo *fakeTrendingRepo, topN int) (*Job, *counter.MemoryStore, time.Time) {
	cache := counter.NewMemoryStore()
	now := time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC)
	job := NewJob(repo, cache, time.Minute, topN)
	job.SetClock(func() time.Time { return now })
	return job, cache, now
}

func TestRecomputeAppliesDecayWeights(t *testing.T) {
	repo := newFakeTrendingRepo()
	job, cache, now := testJob(repo, 10)
	repo.codes["u1"] = "aaa"

	// 100 clicks in the current hour, 100 one hour back, 100 three hours
	// back: 100*1.0 + 100*0.5 + 100*0.25.
	repo.buckets = []models.HourlyStats{
		{URLID: "u1", DateHour: now.Truncate(time.Hour), Clicks: 100},
		{URLID: "u1", DateHour: now.Truncate(time.Hour).Add(-time.Hour), Clicks: 100},
		{URLID: "u1", DateHour: now.Truncate(time.Hour).Add(-3 * time.Hour), Clicks: 100},
	}

	require.NoError(t, job.Recompute(context.Background()))

	entries, err := Snapshot(context.Background(), cache)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "u1", entries[0].URLID)
	assert.Equal(t, "aaa", entries[0].Code)
	assert.InDelta(t, 175.0, entries[0].Score, 0.001)
	assert.InDelta(t, 175.0, repo.scores["u1"], 0.001)
}

func TestRecomputeIgnoresBucketsOutsideWindow(t *testing.T) {
	repo := newFakeTrendingRepo()
	job, cache, now := testJob(repo, 10)
	repo.codes["u1"] = "aaa"

	repo.buckets = []models.HourlyStats{
		{URLID: "u1", DateHour: now.Truncate(time.Hour), Clicks: 10},
		{URLID: "u2", DateHour: now.Truncate(time.Hour).Add(-6 * time.Hour), Clicks: 1000},
	}

	require.NoError(t, job.Recompute(context.Background()))

	entries, err := Snapshot(context.Background(), cache)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "u1", entries[0].URLID)
}

func TestRecomputeRanksAndCaps(t *testing.T) {
	repo := newFakeTrendingRepo()
	job, cache, now := testJob(repo, 2)
	repo.codes["u1"] = "aaa"
	repo.codes["u2"] = "bbb"
	repo.codes["u3"] = "ccc"

	hour := now.Truncate(time.Hour)
	repo.buckets = []models.HourlyStats{
		{URLID: "u1", DateHour: hour, Clicks: 5},
		{URLID: "u2", DateHour: hour, Clicks: 50},
		{URLID: "u3", DateHour: hour, Clicks: 20},
	}

	require.NoError(t, job.Recompute(context.Background()))

	entries, err := Snapshot(context.Background(), cache)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "bbb", entries[0].Code)
	assert.Equal(t, "ccc", entries[1].Code)
	assert.Greater(t, entries[0].Score, entries[1].Score)
}

func TestRecomputeReplacesPreviousSnapshot(t *testing.T) {
	repo := newFakeTrendingRepo()
	job, cache, now := testJob(repo, 10)
	repo.codes["u1"] = "aaa"
	repo.codes["u2"] = "bbb"

	hour := now.Truncate(time.Hour)
	repo.buckets = []models.HourlyStats{{URLID: "u1", DateHour: hour, Clicks: 10}}
	require.NoError(t, job.Recompute(context.Background()))

	// The next run sees only a different URL; the old entry must not
	// linger in the published ranking.
	repo.buckets = []models.HourlyStats{{URLID: "u2", DateHour: hour, Clicks: 10}}
	require.NoError(t, job.Recompute(context.Background()))

	entries, err := Snapshot(context.Background(), cache)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "u2", entries[0].URLID)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	repo := newFakeTrendingRepo()
	job, cache, now := testJob(repo, 10)
	repo.codes["u1"] = "aaa"

	repo.buckets = []models.HourlyStats{{URLID: "u1", DateHour: now.Truncate(time.Hour), Clicks: 10}}

	require.NoError(t, job.Recompute(context.Background()))
	first, err := Snapshot(context.Background(), cache)
	require.NoError(t, err)

	require.NoError(t, job.Recompute(context.Background()))
	second, err := Snapshot(context.Background(), cache)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSnapshotEmptyWhenUnpublished(t *testing.T) {
	cache := counter.NewMemoryStore()

	entries, err := Snapshot(context.Background(), cache)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
