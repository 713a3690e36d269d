package selections

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSource serves canned distinct values per column.
type stubSource struct {
	values map[string][]string
	err    error
}

func (s *stubSource) DistinctActive(_ context.Context, column string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.values[column], nil
}

func TestSnapshot_SortsTextFields(t *testing.T) {
	// Arrange
	source := &stubSource{values: map[string][]string{
		"zip":          {"63118", "63104", "63115"},
		"neighborhood": {"Penrose", "Baden", "Dutchtown"},
	}}
	agg := NewAggregator(source)

	// Act
	sel, err := agg.Snapshot(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"63104", "63115", "63118"}, sel.Zips)
	assert.Equal(t, []string{"Baden", "Dutchtown", "Penrose"}, sel.Neighborhoods)
}

func TestSnapshot_SortsWardsNumerically(t *testing.T) {
	// Ward 9 must precede ward 10; lexicographic order would invert them.
	source := &stubSource{values: map[string][]string{
		"ward": {"10", "9", "1", "22", "3"},
	}}
	agg := NewAggregator(source)

	sel, err := agg.Snapshot(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3", "9", "10", "22"}, sel.Wards)
}

func TestSnapshot_PropagatesSourceError(t *testing.T) {
	agg := NewAggregator(&stubSource{err: errors.New("connection closed")})

	_, err := agg.Snapshot(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "zip selections")
}

func TestSnapshot_EmptyStore(t *testing.T) {
	agg := NewAggregator(&stubSource{values: map[string][]string{}})

	sel, err := agg.Snapshot(context.Background())

	require.NoError(t, err)
	assert.Empty(t, sel.Zips)
	assert.Empty(t, sel.Wards)
	assert.Empty(t, sel.PropertyTypes)
}
