package interfaces

import (
	"context"
	"time"

	"github.com/arpitbanna/url-shortener/internal/models"
)

// ClickRepo is the durable-store side of the click pipeline.
type ClickRepo interface {
	// InsertClick stores the click record and increments the URL's
	// lifetime click counter in one transaction.
	InsertClick(ctx context.Context, click *models.ClickRecord) error

	InsertSuspiciousClick(ctx context.Context, click *models.SuspiciousClick) error

	// UpsertHourly merges one click into the (url, hour) rollup as a
	// single atomic upsert-with-addition. Callers must invoke it before
	// writing the fingerprint's click row: the unique-visitor probe treats
	// any existing row as a returning visitor.
	UpsertHourly(ctx context.Context, urlID, fp string, bucket time.Time, suspicious bool) error

	IncrementReferrer(ctx context.Context, urlID, referrer string) error
}

// SequenceRepo persists the per-fingerprint visit sequences.
type SequenceRepo interface {
	GetSequence(ctx context.Context, fp string) ([]string, error)
	SaveSequence(ctx context.Context, fp string, sequence []string) error
}

// TrendingRepo feeds the trending recomputation job.
type TrendingRepo interface {
	// RecentHourly returns all hourly buckets with date_hour >= since.
	RecentHourly(ctx context.Context, since time.Time) ([]models.HourlyStats, error)
	UpdateTrendingScore(ctx context.Context, urlID string, score float64) error
	// CodesByID resolves url ids to short codes for the snapshot.
	CodesByID(ctx context.Context, urlIDs []string) (map[string]string, error)
}

// URLRepo serves the HTTP tier.
type URLRepo interface {
	CreateURL(ctx context.Context, url *models.URL) error
	GetURLByCode(ctx context.Context, code string) (*models.URL, error)
	GetHourlyAnalytics(ctx context.Context, urlID string) ([]models.HourlyStats, error)
	GetTopReferrers(ctx context.Context, urlID string, limit int) ([]models.ReferrerStats, error)
}
