// Package trending recomputes the decayed click ranking over a sliding
// four-hour window and republishes it as a single cache value, so readers
// never observe a partially updated ranking.
package trending

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/arpitbanna/url-shortener/internal/counter"
	"github.com/arpitbanna/url-shortener/internal/models"
	"github.com/arpitbanna/url-shortener/internal/repo/interfaces"
	"github.com/arpitbanna/url-shortener/internal/utils"
)

// SnapshotKey is the cache key holding the published ranking.
const SnapshotKey = "trending_urls"

const window = 4 * time.Hour

type Job struct {
	repo     interfaces.TrendingRepo
	cache    counter.Store
	interval time.Duration
	topN     int
	now      func() time.Time
}

func NewJob(repo interfaces.TrendingRepo, cache counter.Store, interval time.Duration, topN int) *Job {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if topN <= 0 {
		topN = 10
	}
	return &Job{
		repo:     repo,
		cache:    cache,
		interval: interval,
		topN:     topN,
		now:      time.Now,
	}
}

// SetClock overrides the job's time source for tests.
func (j *Job) SetClock(now func() time.Time) {
	j.now = now
}

// Run recomputes on a fixed cadence until the context is cancelled.
// Overlapping runs are tolerated: the final cache write is a full replace.
func (j *Job) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := j.Recompute(ctx); err != nil {
				logrus.WithError(err).Error("trending recompute failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// decay weights a bucket by its age: full weight inside the first hour,
// halved under two hours, quartered under four, zero beyond the window.
func decay(age time.Duration) float64 {
	switch {
	case age < time.Hour:
		return 1.0
	case age < 2*time.Hour:
		return 0.5
	case age < window:
		return 0.25
	default:
		return 0
	}
}

// Recompute scores every URL clicked in the window, persists the scores,
// and publishes the ranked snapshot.
func (j *Job) Recompute(ctx context.Context) error {
	now := j.now()

	buckets, err := j.repo.RecentHourly(ctx, utils.HourBucket(now.Add(-window)))
	if err != nil {
		return fmt.Errorf("load hourly buckets: %w", err)
	}

	scores := make(map[string]float64)
	for _, bucket := range buckets {
		weight := decay(now.Sub(bucket.DateHour))
		if weight == 0 {
			continue
		}
		scores[bucket.URLID] += float64(bucket.Clicks) * weight
	}

	entries := make([]models.TrendingEntry, 0, len(scores))
	for urlID, score := range scores {
		entries = append(entries, models.TrendingEntry{URLID: urlID, Score: score})
	}
	sort.Slice(entries, func(a, b int) bool {
		if entries[a].Score != entries[b].Score {
			return entries[a].Score > entries[b].Score
		}
		return entries[a].URLID < entries[b].URLID
	})
	if len(entries) > j.topN {
		entries = entries[:j.topN]
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.URLID)
	}
	codes, err := j.repo.CodesByID(ctx, ids)
	if err != nil {
		return fmt.Errorf("resolve codes: %w", err)
	}

	for i := range entries {
		entries[i].Code = codes[entries[i].URLID]
		if err := j.repo.UpdateTrendingScore(ctx, entries[i].URLID, entries[i].Score); err != nil {
			return fmt.Errorf("persist score: %w", err)
		}
	}

	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := j.cache.Set(ctx, SnapshotKey, string(payload), 0); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}

	logrus.WithField("urls", len(entries)).Info("trending snapshot published")
	return nil
}

// Snapshot returns the latest published ranking, empty when none exists.
func Snapshot(ctx context.Context, cache counter.Store) ([]models.TrendingEntry, error) {
	raw, ok, err := cache.Get(ctx, SnapshotKey)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if !ok {
		return []models.TrendingEntry{}, nil
	}

	var entries []models.TrendingEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return entries, nil
}
