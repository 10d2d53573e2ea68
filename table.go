package explorer

import (
	"context"

	"go.uber.org/zap"
)

const defaultTableLimit = 1000

// TableSource serves the cross-tab rows of the data table.
type TableSource interface {
	Grouped(ctx context.Context, req *ItemsRequest) ([]*ItemRow, error)
}

type TableOption func(v *TableView)

func LimitTableOption(limit int) TableOption {
	return func(v *TableView) {
		v.limit = limit
	}
}

// TableView keeps the data table in step with the assigned dimensions and
// filters. Every refresh carries a request id; completions of superseded
// requests are dropped.
type TableView struct {
	sel    *Selection
	source TableSource
	limit  int

	requestID uint64
	rows      []*ItemRow
	err       error
	loading   bool
	onUpdate  func()
}

// NewTableView subscribes the table to dimension and filter changes for the
// lifetime of scope.
func NewTableView(ctx context.Context, sel *Selection, source TableSource, scope *Scope, options ...TableOption) *TableView {
	v := &TableView{
		sel:    sel,
		source: source,
		limit:  defaultTableLimit,
	}
	for _, opt := range options {
		opt(v)
	}

	sel.Subscribe(string(TopicDimensions)+","+string(TopicFilters), scope, func() {
		v.Refresh(ctx)
	})

	return v
}

func (v *TableView) Rows() []*ItemRow { return v.rows }
func (v *TableView) Err() error       { return v.err }
func (v *TableView) Loading() bool    { return v.loading }

// OnUpdate sets the callback run after the rows or the error changed.
func (v *TableView) OnUpdate(fn func()) {
	v.onUpdate = fn
}

// Refresh refetches the rows for the current selection.
func (v *TableView) Refresh(ctx context.Context) {
	v.requestID++
	id := v.requestID

	q := v.sel.Query()
	if len(q.Dimensions) == 0 {
		v.rows, v.err, v.loading = nil, nil, false
		v.notify()
		return
	}

	q.Focus = nil
	req := q.ItemsRequest()
	req.Limit = v.limit
	for _, key := range q.Dimensions {
		req.SortBy = append(req.SortBy, &ItemsRequestOrder{Key: key, Direction: "asc"})
	}

	v.loading = true
	go func() {
		rows, err := v.source.Grouped(ctx, req)
		v.sel.loop.Post(func() {
			v.complete(id, rows, err)
		})
	}()
}

func (v *TableView) complete(id uint64, rows []*ItemRow, err error) {
	if id != v.requestID {
		v.sel.metrics.table(outcomeStale)
		v.sel.logger.Debug("drop stale table response", zap.Uint64("request", id), zap.Uint64("current", v.requestID))
		return
	}

	v.loading = false
	if err != nil {
		v.sel.metrics.table(outcomeFailure)
		v.sel.logger.Warn("failed to load table", zap.Error(err))
		v.err = err
		v.notify()
		return
	}

	v.sel.metrics.table(outcomeSuccess)
	v.rows, v.err = rows, nil
	v.notify()
}

func (v *TableView) notify() {
	if v.onUpdate != nil {
		v.onUpdate()
	}
}
