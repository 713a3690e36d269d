// Package selections recomputes the distinct-value sets the search
// frontend builds its filter menus from.
package selections

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/401-Nick/lra-alerts/internal/models"
)

// DistinctSource supplies distinct column values over non-removed
// listings. Satisfied by the listings repository.
type DistinctSource interface {
	DistinctActive(ctx context.Context, column string) ([]string, error)
}

// Aggregator rebuilds the selections snapshot. It runs after the writer
// commits, so the snapshot reflects exactly the post-ingest state,
// including the removals of the run that triggered it.
type Aggregator struct {
	source DistinctSource
}

// NewAggregator creates an Aggregator.
func NewAggregator(source DistinctSource) *Aggregator {
	return &Aggregator{source: source}
}

// Snapshot collects and sorts the distinct values for every filterable
// field. Text fields sort lexicographically; wards sort numerically so
// ward 9 precedes ward 10 in the menu.
func (a *Aggregator) Snapshot(ctx context.Context) (models.Selections, error) {
	var (
		sel models.Selections
		err error
	)

	if sel.Zips, err = a.textField(ctx, "zip"); err != nil {
		return models.Selections{}, err
	}
	if sel.Neighborhoods, err = a.textField(ctx, "neighborhood"); err != nil {
		return models.Selections{}, err
	}
	if sel.Wards, err = a.wardField(ctx); err != nil {
		return models.Selections{}, err
	}
	if sel.Usages, err = a.textField(ctx, "usage"); err != nil {
		return models.Selections{}, err
	}
	if sel.Statuses, err = a.textField(ctx, "status"); err != nil {
		return models.Selections{}, err
	}
	if sel.PropertyTypes, err = a.textField(ctx, "property_type"); err != nil {
		return models.Selections{}, err
	}

	return sel, nil
}

func (a *Aggregator) textField(ctx context.Context, column string) ([]string, error) {
	values, err := a.source.DistinctActive(ctx, column)
	if err != nil {
		return nil, fmt.Errorf("aggregating %s selections: %w", column, err)
	}
	sort.Strings(values)
	return values, nil
}

func (a *Aggregator) wardField(ctx context.Context) ([]string, error) {
	values, err := a.source.DistinctActive(ctx, "ward")
	if err != nil {
		return nil, fmt.Errorf("aggregating ward selections: %w", err)
	}

	sort.Slice(values, func(i, j int) bool {
		a, aerr := strconv.Atoi(values[i])
		b, berr := strconv.Atoi(values[j])
		if aerr != nil || berr != nil {
			return values[i] < values[j]
		}
		return a < b
	})
	return values, nil
}
