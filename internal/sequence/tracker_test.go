package sequence

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSequenceRepo struct {
	sequences map[string][]string
}

func newFakeSequenceRepo() *fakeSequenceRepo {
	return &fakeSequenceRepo{sequences: make(map[string][]string)}
}

func (f *fakeSequenceRepo) GetSequence(_ context.Context, fp string) ([]string, error) {
	return f.sequences[fp], nil
}

func (f *fakeSequenceRepo) SaveSequence(_ context.Context, fp string, sequence []string) error {
	f.sequences[fp] = sequence
	return nil
}

func TestRecordAppendsNewCodes(t *testing.T) {
	tracker := NewTracker(newFakeSequenceRepo(), 10)
	ctx := context.Background()

	seq, err := tracker.Record(ctx, "fp1", "aaa")
	require.NoError(t, err)
	assert.Equal(t, []string{"aaa"}, seq)

	seq, err = tracker.Record(ctx, "fp1", "bbb")
	require.NoError(t, err)
	assert.Equal(t, []string{"aaa", "bbb"}, seq)
}

func TestRecordSkipsCodesAlreadyPresent(t *testing.T) {
	tracker := NewTracker(newFakeSequenceRepo(), 10)
	ctx := context.Background()

	for _, code := range []string{"aaa", "bbb", "aaa", "aaa"} {
		_, err := tracker.Record(ctx, "fp1", code)
		require.NoError(t, err)
	}

	seq, err := tracker.Record(ctx, "fp1", "ccc")
	require.NoError(t, err)
	assert.Equal(t, []string{"aaa", "bbb", "ccc"}, seq)
}

func TestRecordCapsToLastN(t *testing.T) {
	tracker := NewTracker(newFakeSequenceRepo(), 3)
	ctx := context.Background()

	var seq []string
	var err error
	for i := 0; i < 5; i++ {
		seq, err = tracker.Record(ctx, "fp1", fmt.Sprintf("code%d", i))
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"code2", "code3", "code4"}, seq)
}

func TestRecordIsolatesFingerprints(t *testing.T) {
	repo := newFakeSequenceRepo()
	tracker := NewTracker(repo, 10)
	ctx := context.Background()

	_, err := tracker.Record(ctx, "fp1", "aaa")
	require.NoError(t, err)
	seq, err := tracker.Record(ctx, "fp2", "bbb")
	require.NoError(t, err)

	assert.Equal(t, []string{"bbb"}, seq)
	assert.Equal(t, []string{"aaa"}, repo.sequences["fp1"])
}
