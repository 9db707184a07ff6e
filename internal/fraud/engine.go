// Package fraud implements the click-fraud heuristics engine. Every
// heuristic reads TTL-windowed counters, so state resets itself and the
// checks stay correct under any arrival order of click jobs.
package fraud

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/arpitbanna/url-shortener/internal/counter"
)

// Reason classifies why a click was flagged.
type Reason string

const (
	ReasonIPRateThreshold  Reason = "ip_rate_threshold"
	ReasonUnusualUserAgent Reason = "unusual_user_agent"
	ReasonMissingReferrer  Reason = "missing_referrer"
	ReasonLongReferrer     Reason = "long_referrer"
	ReasonIPClicks         Reason = "ip_clicks"
	ReasonIPURLClicks      Reason = "ip_url_clicks"
	ReasonBotUserAgent     Reason = "bot_user_agent"
	ReasonClickVelocity    Reason = "click_velocity"
	ReasonRepeatedSequence Reason = "repeated_sequence"
)

// unusualUserAgents are substrings of known tools and crawlers.
var unusualUserAgents = []string{"python-requests", "curl", "bot", "spider"}

const maxReferrerLength = 200

// Verdict is the outcome of one evaluation.
type Verdict struct {
	Suspicious bool
	Reasons    []Reason
}

// Observer receives per-reason counters and the live fraud-key gauges.
type Observer interface {
	SuspiciousRequest(reason string)
	SetSuspiciousIPs(count int64)
	SetSuspiciousIPURLs(count int64)
}

type Config struct {
	RateThreshold      int
	MaxClicksPerIP     int
	MaxClicksPerIPURL  int
	VelocityThreshold  time.Duration
	Window             time.Duration
	MaxClicksPerWindow int
	MaxSequenceLength  int
}

func (c *Config) applyDefaults() {
	if c.RateThreshold <= 0 {
		c.RateThreshold = 10
	}
	if c.MaxClicksPerIP <= 0 {
		c.MaxClicksPerIP = 10
	}
	if c.MaxClicksPerIPURL <= 0 {
		c.MaxClicksPerIPURL = 5
	}
	if c.VelocityThreshold <= 0 {
		c.VelocityThreshold = time.Second
	}
	if c.Window <= 0 {
		c.Window = 10 * time.Second
	}
	if c.MaxClicksPerWindow <= 0 {
		c.MaxClicksPerWindow = 5
	}
	if c.MaxSequenceLength <= 0 {
		c.MaxSequenceLength = 5
	}
}

type Engine struct {
	store    counter.Store
	cfg      Config
	observer Observer
	now      func() time.Time
}

func NewEngine(store counter.Store, cfg Config, observer Observer) *Engine {
	cfg.applyDefaults()
	return &Engine{
		store:    store,
		cfg:      cfg,
		observer: observer,
		now:      time.Now,
	}
}

// SetClock overrides the engine's time source for the velocity check.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Evaluate runs every heuristic against the click and returns the combined
// verdict. All static heuristics are evaluated unconditionally so that the
// per-reason counters stay accurate even when the verdict is already
// positive.
func (e *Engine) Evaluate(ctx context.Context, ip, urlCode, userAgent, referrer, fp string) (Verdict, error) {
	var verdict Verdict

	if err := e.checkStatic(ctx, ip, urlCode, userAgent, referrer, &verdict); err != nil {
		return Verdict{}, err
	}

	velocitySuspicious, err := e.checkVelocity(ctx, fp)
	if err != nil {
		return Verdict{}, err
	}
	if velocitySuspicious {
		verdict.flag(ReasonClickVelocity)
		e.observe(ReasonClickVelocity)
	}

	repeated, err := e.checkBehavior(ctx, fp, urlCode)
	if err != nil {
		return Verdict{}, err
	}
	if repeated {
		verdict.flag(ReasonRepeatedSequence)
		e.observe(ReasonRepeatedSequence)
	}

	return verdict, nil
}

func (e *Engine) checkStatic(ctx context.Context, ip, urlCode, userAgent, referrer string, verdict *Verdict) error {
	// Rate per IP: read the previous window count, incremented below.
	rateKey := "suspicious_rate:" + ip
	if raw, ok, err := e.store.Get(ctx, rateKey); err != nil {
		return fmt.Errorf("read rate counter: %w", err)
	} else if ok {
		if count, _ := strconv.ParseInt(raw, 10, 64); count > int64(e.cfg.RateThreshold) {
			verdict.flag(ReasonIPRateThreshold)
			e.observe(ReasonIPRateThreshold)
		}
	}

	ua := strings.ToLower(userAgent)
	if userAgent != "" {
		for _, marker := range unusualUserAgents {
			if strings.Contains(ua, marker) {
				verdict.flag(ReasonUnusualUserAgent)
				e.observe(ReasonUnusualUserAgent)
				break
			}
		}
	}

	if referrer == "" {
		verdict.flag(ReasonMissingReferrer)
		e.observe(ReasonMissingReferrer)
	} else if len(referrer) > maxReferrerLength {
		verdict.flag(ReasonLongReferrer)
		e.observe(ReasonLongReferrer)
	}

	ipClicks, err := e.store.Increment(ctx, "fraud:ip:"+ip, time.Minute)
	if err != nil {
		return fmt.Errorf("increment ip counter: %w", err)
	}
	if ipClicks > int64(e.cfg.MaxClicksPerIP) {
		verdict.flag(ReasonIPClicks)
		e.observe(ReasonIPClicks)
	}

	ipURLClicks, err := e.store.Increment(ctx, "fraud:ip_url:"+ip+":"+urlCode, time.Minute)
	if err != nil {
		return fmt.Errorf("increment ip+url counter: %w", err)
	}
	if ipURLClicks > int64(e.cfg.MaxClicksPerIPURL) {
		verdict.flag(ReasonIPURLClicks)
		e.observe(ReasonIPURLClicks)
	}

	if userAgent != "" && strings.Contains(ua, "bot") {
		verdict.flag(ReasonBotUserAgent)
		e.observe(ReasonBotUserAgent)
	}

	// Advance the rate window for the next evaluation; the TTL refresh
	// keeps the window rolling while the IP stays active.
	if _, err := e.store.Increment(ctx, rateKey, time.Minute); err != nil {
		return fmt.Errorf("increment rate counter: %w", err)
	}
	if err := e.store.Expire(ctx, rateKey, time.Minute); err != nil {
		return fmt.Errorf("refresh rate counter: %w", err)
	}

	if e.observer != nil {
		ips, err := e.store.CountPrefix(ctx, "fraud:ip:")
		if err != nil {
			return fmt.Errorf("count fraud ips: %w", err)
		}
		ipURLs, err := e.store.CountPrefix(ctx, "fraud:ip_url:")
		if err != nil {
			return fmt.Errorf("count fraud ip+urls: %w", err)
		}
		e.observer.SetSuspiciousIPs(ips)
		e.observer.SetSuspiciousIPURLs(ipURLs)
	}

	return nil
}

// checkVelocity flags a click that follows the fingerprint's previous one
// too quickly. A too-fast repeat does not advance the window counters, so
// a burst cannot inflate its own count before being flagged.
func (e *Engine) checkVelocity(ctx context.Context, fp string) (bool, error) {
	now := e.now()

	lastKey := "last_click:" + fp
	var last time.Time
	if raw, ok, err := e.store.Get(ctx, lastKey); err != nil {
		return false, fmt.Errorf("read last click: %w", err)
	} else if ok {
		if nanos, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			last = time.Unix(0, nanos)
		}
	}

	if !last.IsZero() && now.Sub(last) < e.cfg.VelocityThreshold {
		return true, nil
	}

	count, err := e.store.Increment(ctx, "click_count:"+fp, e.cfg.Window)
	if err != nil {
		return false, fmt.Errorf("increment click count: %w", err)
	}
	if err := e.store.Set(ctx, lastKey, strconv.FormatInt(now.UnixNano(), 10), e.cfg.Window); err != nil {
		return false, fmt.Errorf("store last click: %w", err)
	}

	return count > int64(e.cfg.MaxClicksPerWindow), nil
}

// checkBehavior appends the current code to the fingerprint's windowed
// visit sequence and flags the degenerate pattern where the last N visits
// are all the same code.
func (e *Engine) checkBehavior(ctx context.Context, fp, urlCode string) (bool, error) {
	seq, err := e.store.ListAppendTrim(ctx, "behavior_seq:"+fp, urlCode,
		int64(e.cfg.MaxSequenceLength), time.Minute)
	if err != nil {
		return false, fmt.Errorf("update behavior sequence: %w", err)
	}

	if len(seq) < e.cfg.MaxSequenceLength {
		return false, nil
	}
	for _, code := range seq {
		if code != urlCode {
			return false, nil
		}
	}
	return true, nil
}

func (e *Engine) observe(reason Reason) {
	if e.observer != nil {
		e.observer.SuspiciousRequest(string(reason))
	}
}

func (v *Verdict) flag(reason Reason) {
	v.Suspicious = true
	for _, r := range v.Reasons {
		if r == reason {
			return
		}
	}
	v.Reasons = append(v.Reasons, reason)
}
