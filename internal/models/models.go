package models

import "time"

// ClickEvent is the message produced by the redirect handler and consumed
// by the worker. One event is emitted per redirect, before the visitor is
// sent on their way.
type ClickEvent struct {
	EventID        string    `json:"event_id,omitempty"`
	URLID          string    `json:"url_id"`
	Code           string    `json:"code"`
	IPAddress      string    `json:"ip_address"`
	UserAgent      string    `json:"user_agent,omitempty"`
	Referrer       string    `json:"referrer,omitempty"`
	AcceptLanguage string    `json:"accept_language,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// URL is a shortened link.
type URL struct {
	ID            string    `db:"id" json:"id"`
	Code          string    `db:"code" json:"code"`
	OriginalURL   string    `db:"original_url" json:"original_url"`
	UserID        string    `db:"user_id" json:"user_id,omitempty"`
	Clicks        int64     `db:"clicks" json:"clicks"`
	TrendingScore float64   `db:"trending_score" json:"trending_score"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// ClickRecord is the durable fact written once per accepted redirect.
type ClickRecord struct {
	ID          string    `db:"id" json:"id"`
	URLID       string    `db:"url_id" json:"url_id"`
	IPAddress   string    `db:"ip" json:"ip"`
	UserAgent   string    `db:"user_agent" json:"user_agent"`
	Referrer    string    `db:"referrer" json:"referrer"`
	Fingerprint string    `db:"fingerprint" json:"fingerprint"`
	ClickedAt   time.Time `db:"clicked_at" json:"clicked_at"`
}

// SuspiciousClick is written when the heuristics engine flags a click.
type SuspiciousClick struct {
	ID          string    `db:"id" json:"id"`
	Fingerprint string    `db:"fingerprint" json:"fingerprint"`
	IPAddress   string    `db:"ip" json:"ip"`
	UserAgent   string    `db:"user_agent" json:"user_agent"`
	Referrer    string    `db:"referrer" json:"referrer"`
	Reason      string    `db:"reason" json:"reason"`
	URLCode     string    `db:"url_code" json:"url_code"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// HourlyStats is the hour-bucketed rollup keyed by (url_id, date_hour).
type HourlyStats struct {
	URLID            string    `db:"url_id" json:"url_id"`
	DateHour         time.Time `db:"date_hour" json:"date_hour"`
	Clicks           int64     `db:"clicks" json:"clicks"`
	UniqueVisitors   int64     `db:"unique_visitors" json:"unique_visitors"`
	SuspiciousClicks int64     `db:"suspicious_clicks" json:"suspicious_clicks"`
}

// ReferrerStats is one row of the per-URL referrer tally.
type ReferrerStats struct {
	URLID    string `db:"url_id" json:"url_id"`
	Referrer string `db:"referrer" json:"referrer"`
	Clicks   int64  `db:"clicks" json:"clicks"`
}

// TrendingEntry is one ranked entry of the published trending snapshot.
type TrendingEntry struct {
	URLID string  `json:"url_id"`
	Code  string  `json:"code"`
	Score float64 `json:"trending_score"`
}
