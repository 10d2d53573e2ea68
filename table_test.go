package explorer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type stubTable struct {
	mu       sync.Mutex
	requests []*ItemsRequest
	respond  func(req *ItemsRequest, call int) ([]*ItemRow, error)
}

func (s *stubTable) Grouped(_ context.Context, req *ItemsRequest) ([]*ItemRow, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	call := len(s.requests)
	s.mu.Unlock()

	return s.respond(req, call)
}

func (s *stubTable) Requests() []*ItemsRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]*ItemsRequest(nil), s.requests...)
}

func rowsOf(values ...string) []*ItemRow {
	rows := make([]*ItemRow, 0, len(values))
	for _, v := range values {
		rows = append(rows, &ItemRow{
			Dimensions: map[string]interface{}{"hashtags": v},
			Metrics:    map[string]ValueNumber{"count": 1},
		})
	}

	return rows
}

func TestTableView_Refresh(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewSelection(testRegistry(t))
	source := &stubTable{respond: func(*ItemsRequest, int) ([]*ItemRow, error) {
		return rowsOf("#go"), nil
	}}

	scope := NewScope()
	defer scope.Close()

	view := NewTableView(ctx, s, source, scope, LimitTableOption(50))
	updates := 0
	view.OnUpdate(func() { updates++ })

	require.NoError(t, s.Zones().Assign(Primary, "hashtags"))
	require.True(t, view.Loading())
	drain(t, s, func() bool { return !view.Loading() })

	require.Equal(t, rowsOf("#go"), view.Rows())
	require.NoError(t, view.Err())
	require.Equal(t, 1, updates)

	d := dimension(t, s, "hashtags")
	d.Filter().Set(FieldLevels, []interface{}{"#go"})
	s.ApplyFilter(d)
	drain(t, s, func() bool { return !view.Loading() })

	requests := source.Requests()
	require.Len(t, requests, 2)

	last := requests[1]
	require.Equal(t, 50, last.Limit)
	require.Equal(t, []string{"hashtags"}, last.Groups)
	require.Equal(t, []*ItemsRequestOrder{{Key: "hashtags", Direction: "asc"}}, last.SortBy)
	require.Equal(t, []*ItemsRequestFilter{
		{Key: "hashtags", Values: []interface{}{"#go"}, Condition: CondEq},
	}, last.Filters)
}

func TestTableView_IgnoresFocus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewSelection(testRegistry(t))
	source := &stubTable{respond: func(*ItemsRequest, int) ([]*ItemRow, error) {
		return rowsOf("#go"), nil
	}}

	scope := NewScope()
	defer scope.Close()

	view := NewTableView(ctx, s, source, scope)
	require.NoError(t, s.Zones().Assign(Primary, "hashtags"))
	drain(t, s, func() bool { return !view.Loading() })

	s.SetFocus([]interface{}{"#go"})
	require.False(t, view.Loading())
	require.Len(t, source.Requests(), 1)
}

func TestTableView_DropsStaleResponse(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	metrics := NewMetrics(prometheus.NewRegistry())
	s := NewSelection(testRegistry(t), MetricsSelectionOption(metrics))

	release := make(chan struct{})
	source := &stubTable{respond: func(req *ItemsRequest, _ int) ([]*ItemRow, error) {
		if len(req.Filters) == 0 {
			<-release
			return rowsOf("#stale"), nil
		}
		return rowsOf("#fresh"), nil
	}}

	scope := NewScope()
	defer scope.Close()

	view := NewTableView(ctx, s, source, scope)
	require.NoError(t, s.Zones().Assign(Primary, "hashtags"))

	d := dimension(t, s, "hashtags")
	d.Filter().Set(FieldLevels, []interface{}{"#fresh"})
	s.ApplyFilter(d)
	drain(t, s, func() bool { return !view.Loading() })
	require.Equal(t, rowsOf("#fresh"), view.Rows())

	close(release)
	drain(t, s, func() bool {
		return testutil.ToFloat64(metrics.TableRequests.WithLabelValues(outcomeStale)) == 1
	})

	require.Equal(t, rowsOf("#fresh"), view.Rows())
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.TableRequests.WithLabelValues(outcomeSuccess)))
}

func TestTableView_ErrorKeepsRows(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewSelection(testRegistry(t))
	errBackend := errors.New("backend down")
	source := &stubTable{respond: func(_ *ItemsRequest, call int) ([]*ItemRow, error) {
		if call == 1 {
			return rowsOf("#go"), nil
		}
		return nil, errBackend
	}}

	scope := NewScope()
	defer scope.Close()

	view := NewTableView(ctx, s, source, scope)
	require.NoError(t, s.Zones().Assign(Primary, "hashtags"))
	drain(t, s, func() bool { return !view.Loading() })

	view.Refresh(ctx)
	drain(t, s, func() bool { return !view.Loading() })

	require.ErrorIs(t, view.Err(), errBackend)
	require.Equal(t, rowsOf("#go"), view.Rows())
}

func TestTableView_NoDimensions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewSelection(testRegistry(t))
	source := &stubTable{respond: func(*ItemsRequest, int) ([]*ItemRow, error) {
		return rowsOf("#go"), nil
	}}

	scope := NewScope()
	view := NewTableView(ctx, s, source, scope)

	require.NoError(t, s.Zones().Assign(Primary, "hashtags"))
	drain(t, s, func() bool { return !view.Loading() })
	require.NotEmpty(t, view.Rows())

	require.NoError(t, s.Zones().Clear(Primary))
	require.False(t, view.Loading())
	require.Nil(t, view.Rows())

	scope.Close()
	require.NoError(t, s.Zones().Assign(Primary, "hashtags"))
	require.False(t, view.Loading())
	require.Len(t, source.Requests(), 1)
}
