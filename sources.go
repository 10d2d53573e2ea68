package explorer

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Sources reads several repositories with the same layout, e.g. shards of
// one corpus, and merges what they return.
type Sources []ReadRepository

func (s Sources) Metrics() ([]*Metric, error) {
	if len(s) == 0 {
		return []*Metric{}, nil
	}

	return s[0].Metrics()
}

func (s Sources) Total(ctx context.Context, req *ItemsRequest) (uint64, error) {
	totals := make([]uint64, len(s))

	g, ctx := errgroup.WithContext(ctx)
	for i := range s {
		i := i
		g.Go(func() error {
			total, err := s[i].Total(ctx, req)
			if err != nil {
				return fmt.Errorf("failed to read total from source %d: %w", i, err)
			}
			totals[i] = total
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var sum uint64
	for _, t := range totals {
		sum += t
	}

	return sum, nil
}

func (s Sources) Values(ctx context.Context, req *ItemsRequest) ([]*ValueResponse, error) {
	responses := make([]*ValuesResponse, len(s))

	g, ctx := errgroup.WithContext(ctx)
	for i := range s {
		i := i
		g.Go(func() error {
			values, err := s[i].Values(ctx, req)
			if err != nil {
				return fmt.Errorf("failed to read values from source %d: %w", i, err)
			}
			responses[i] = &ValuesResponse{Values: values}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := UnionValuesResponse(responses...)
	if merged == nil {
		return []*ValueResponse{}, nil
	}

	return merged.Values, nil
}

func (s Sources) Grouped(ctx context.Context, req *ItemsRequest) ([]*ItemRow, error) {
	responses := make([]*ItemsResponse, len(s))

	g, ctx := errgroup.WithContext(ctx)
	for i := range s {
		i := i
		g.Go(func() error {
			rows, err := s[i].Grouped(ctx, req)
			if err != nil {
				return fmt.Errorf("failed to read rows from source %d: %w", i, err)
			}
			responses[i] = &ItemsResponse{Rows: rows}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := UnionItemsResponse(responses...)
	if merged == nil {
		return []*ItemRow{}, nil
	}

	return merged.Rows, nil
}
