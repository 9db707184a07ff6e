package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/arpitbanna/url-shortener/internal/models"
)

type Repo struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) InsertClick(ctx context.Context, click *models.ClickRecord) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertQuery := `
	INSERT INTO url_clicks (id, url_id, ip, user_agent, referrer, fingerprint, clicked_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.ExecContext(ctx, insertQuery,
		click.ID,
		click.URLID,
		click.IPAddress,
		click.UserAgent,
		click.Referrer,
		click.Fingerprint,
		click.ClickedAt,
	)
	if err != nil {
		return fmt.Errorf("insert click: %w", err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE urls SET clicks = clicks + 1 WHERE id = $1`, click.URLID)
	if err != nil {
		return fmt.Errorf("increment url clicks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *Repo) InsertSuspiciousClick(ctx context.Context, click *models.SuspiciousClick) error {
	query := `
	INSERT INTO suspicious_clicks (id, fingerprint, ip, user_agent, referrer, reason, url_code, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		click.ID,
		click.Fingerprint,
		click.IPAddress,
		click.UserAgent,
		click.Referrer,
		click.Reason,
		click.URLCode,
		click.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert suspicious click: %w", err)
	}
	return nil
}

// UpsertHourly is the single atomic write that keeps the hourly rollup
// correct under concurrent workers. The unique-visitor increment is
// best-effort: it probes for an earlier click row of the same fingerprint
// and adds 1 only on first sight.
func (r *Repo) UpsertHourly(ctx context.Context, urlID, fp string, bucket time.Time, suspicious bool) error {
	var seen bool
	err := r.db.GetContext(ctx, &seen,
		`SELECT EXISTS (SELECT 1 FROM url_clicks WHERE url_id = $1 AND fingerprint = $2)`,
		urlID, fp,
	)
	if err != nil {
		return fmt.Errorf("probe unique visitor: %w", err)
	}

	uniqueDelta := 0
	if !seen {
		uniqueDelta = 1
	}
	suspiciousDelta := 0
	if suspicious {
		suspiciousDelta = 1
	}

	query := `
	INSERT INTO url_analytics_hourly (url_id, date_hour, clicks, unique_visitors, suspicious_clicks)
	VALUES ($1, $2, 1, $3, $4)
	ON CONFLICT (url_id, date_hour)
	DO UPDATE SET
		clicks = url_analytics_hourly.clicks + 1,
		unique_visitors = url_analytics_hourly.unique_visitors + EXCLUDED.unique_visitors,
		suspicious_clicks = url_analytics_hourly.suspicious_clicks + EXCLUDED.suspicious_clicks
	`
	_, err = r.db.ExecContext(ctx, query, urlID, bucket, uniqueDelta, suspiciousDelta)
	if err != nil {
		return fmt.Errorf("upsert hourly stats: %w", err)
	}
	return nil
}

func (r *Repo) IncrementReferrer(ctx context.Context, urlID, referrer string) error {
	if referrer == "" {
		referrer = "direct"
	}
	query := `
	INSERT INTO url_referrers (url_id, referrer, clicks)
	VALUES ($1, $2, 1)
	ON CONFLICT (url_id, referrer)
	DO UPDATE SET clicks = url_referrers.clicks + 1
	`
	if _, err := r.db.ExecContext(ctx, query, urlID, referrer); err != nil {
		return fmt.Errorf("upsert referrer: %w", err)
	}
	return nil
}

func (r *Repo) GetSequence(ctx context.Context, fp string) ([]string, error) {
	var raw []byte
	err := r.db.GetContext(ctx, &raw,
		`SELECT sequence FROM user_sequences WHERE fingerprint = $1`, fp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select sequence: %w", err)
	}

	var sequence []string
	if err := json.Unmarshal(raw, &sequence); err != nil {
		return nil, fmt.Errorf("decode sequence: %w", err)
	}
	return sequence, nil
}

func (r *Repo) SaveSequence(ctx context.Context, fp string, sequence []string) error {
	raw, err := json.Marshal(sequence)
	if err != nil {
		return fmt.Errorf("encode sequence: %w", err)
	}

	query := `
	INSERT INTO user_sequences (fingerprint, sequence, last_update)
	VALUES ($1, $2, NOW())
	ON CONFLICT (fingerprint)
	DO UPDATE SET sequence = EXCLUDED.sequence, last_update = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, fp, raw); err != nil {
		return fmt.Errorf("upsert sequence: %w", err)
	}
	return nil
}

func (r *Repo) RecentHourly(ctx context.Context, since time.Time) ([]models.HourlyStats, error) {
	query := `
	SELECT url_id, date_hour, clicks, unique_visitors, suspicious_clicks
	FROM url_analytics_hourly
	WHERE date_hour >= $1
	`
	var stats []models.HourlyStats
	if err := r.db.SelectContext(ctx, &stats, query, since); err != nil {
		return nil, fmt.Errorf("select recent hourly stats: %w", err)
	}
	return stats, nil
}

func (r *Repo) UpdateTrendingScore(ctx context.Context, urlID string, score float64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE urls SET trending_score = $1 WHERE id = $2`, score, urlID)
	if err != nil {
		return fmt.Errorf("update trending score: %w", err)
	}
	return nil
}

func (r *Repo) CodesByID(ctx context.Context, urlIDs []string) (map[string]string, error) {
	if len(urlIDs) == 0 {
		return map[string]string{}, nil
	}

	rows := []struct {
		ID   string `db:"id"`
		Code string `db:"code"`
	}{}
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, code FROM urls WHERE id = ANY($1)`, pq.Array(urlIDs))
	if err != nil {
		return nil, fmt.Errorf("select codes: %w", err)
	}

	codes := make(map[string]string, len(rows))
	for _, row := range rows {
		codes[row.ID] = row.Code
	}
	return codes, nil
}

func (r *Repo) CreateURL(ctx context.Context, url *models.URL) error {
	query := `
	INSERT INTO urls (id, code, original_url, user_id, created_at)
	VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		url.ID, url.Code, url.OriginalURL, url.UserID, url.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert url: %w", err)
	}
	return nil
}

func (r *Repo) GetURLByCode(ctx context.Context, code string) (*models.URL, error) {
	var url models.URL
	err := r.db.GetContext(ctx, &url,
		`SELECT id, code, original_url, user_id, clicks, trending_score, created_at
		 FROM urls WHERE code = $1`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get url by code: %w", err)
	}
	return &url, nil
}

func (r *Repo) GetHourlyAnalytics(ctx context.Context, urlID string) ([]models.HourlyStats, error) {
	query := `
	SELECT url_id, date_hour, clicks, unique_visitors, suspicious_clicks
	FROM url_analytics_hourly
	WHERE url_id = $1
	ORDER BY date_hour ASC
	`
	var stats []models.HourlyStats
	if err := r.db.SelectContext(ctx, &stats, query, urlID); err != nil {
		return nil, fmt.Errorf("select hourly analytics: %w", err)
	}
	return stats, nil
}

func (r *Repo) GetTopReferrers(ctx context.Context, urlID string, limit int) ([]models.ReferrerStats, error) {
	query := `
	SELECT url_id, referrer, clicks
	FROM url_referrers
	WHERE url_id = $1
	ORDER BY clicks DESC
	LIMIT $2
	`
	var referrers []models.ReferrerStats
	if err := r.db.SelectContext(ctx, &referrers, query, urlID, limit); err != nil {
		return nil, fmt.Errorf("select top referrers: %w", err)
	}
	return referrers, nil
}
