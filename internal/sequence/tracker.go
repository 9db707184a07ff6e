// Package sequence maintains the durable per-fingerprint record of
// recently visited short codes.
package sequence

import (
	"context"
	"fmt"

	"github.com/arpitbanna/url-shortener/internal/repo/interfaces"
)

const DefaultMaxLength = 10

type Tracker struct {
	repo      interfaces.SequenceRepo
	maxLength int
}

func NewTracker(repo interfaces.SequenceRepo, maxLength int) *Tracker {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Tracker{repo: repo, maxLength: maxLength}
}

// Record appends code to the fingerprint's sequence unless it is already
// present anywhere in it, caps the sequence to the last maxLength entries,
// persists, and returns the updated sequence.
func (t *Tracker) Record(ctx context.Context, fp, code string) ([]string, error) {
	sequence, err := t.repo.GetSequence(ctx, fp)
	if err != nil {
		return nil, fmt.Errorf("load sequence: %w", err)
	}

	present := false
	for _, c := range sequence {
		if c == code {
			present = true
			break
		}
	}
	if !present {
		sequence = append(sequence, code)
	}
	if len(sequence) > t.maxLength {
		sequence = sequence[len(sequence)-t.maxLength:]
	}

	if err := t.repo.SaveSequence(ctx, fp, sequence); err != nil {
		return nil, fmt.Errorf("save sequence: %w", err)
	}
	return sequence, nil
}
