package explorer

import (
	"context"

	"go.uber.org/zap"
)

// DistributionLoader fetches the distribution of one dimension.
type DistributionLoader interface {
	Distribution(ctx context.Context, desc Descriptor) (*Distribution, error)
}

// Focus is the highlighted value of one active dimension.
type Focus struct {
	Dimension string      `json:"dimension"`
	Value     interface{} `json:"value"`
}

// SelectionOption configures a Selection.
type SelectionOption func(s *Selection)

func LoggerSelectionOption(logger *zap.Logger) SelectionOption {
	return func(s *Selection) {
		s.logger = logger
	}
}

func LoaderSelectionOption(loader DistributionLoader) SelectionOption {
	return func(s *Selection) {
		s.loader = loader
	}
}

func LoopSelectionOption(loop *Loop) SelectionOption {
	return func(s *Selection) {
		s.loop = loop
	}
}

func MetricsSelectionOption(metrics *Metrics) SelectionOption {
	return func(s *Selection) {
		s.metrics = metrics
	}
}

// Selection derives the active query from the zones and filters and owns the
// change bus views subscribe to.
type Selection struct {
	registry *Registry
	zones    *Zones
	bus      *Bus
	loop     *Loop
	loader   DistributionLoader
	logger   *zap.Logger
	metrics  *Metrics

	focus     []Focus
	filtering *Dimension
}

// NewSelection returns a selection over registry with the primary and
// secondary zones.
func NewSelection(registry *Registry, options ...SelectionOption) *Selection {
	s := &Selection{
		registry: registry,
		logger:   zap.NewNop(),
	}
	for _, opt := range options {
		opt(s)
	}

	if s.loop == nil {
		s.loop = NewLoop(s.logger, 0)
	}
	s.bus = NewBus(s.logger, s.metrics)
	s.zones = newZones(registry, s.bus, s.logger, Primary, Secondary)

	// Focus values are keyed by position, so they go stale with the dimensions.
	s.bus.Subscribe(string(TopicDimensions), nil, func() {
		if len(s.focus) == 0 {
			return
		}
		s.focus = nil
		s.bus.Publish(string(TopicFocus))
	})

	return s
}

func (s *Selection) Registry() *Registry { return s.registry }
func (s *Selection) Zones() *Zones       { return s.zones }
func (s *Selection) Bus() *Bus           { return s.bus }
func (s *Selection) Loop() *Loop         { return s.loop }

// Dimensions returns the assigned dimensions in zone order.
func (s *Selection) Dimensions() []*Dimension {
	out := make([]*Dimension, 0, len(s.zones.All()))
	for _, zone := range s.zones.All() {
		if d, ok := s.zones.Occupant(zone.Name()); ok {
			out = append(out, d)
		}
	}

	return out
}

// Filters returns the non-empty inclusion filters in registry order.
func (s *Selection) Filters() []map[string]interface{} {
	return s.serialize((*Dimension).Filter)
}

// Exclude returns the non-empty exclusion filters in registry order.
func (s *Selection) Exclude() []map[string]interface{} {
	return s.serialize((*Dimension).Exclude)
}

func (s *Selection) serialize(pick func(*Dimension) *Filter) []map[string]interface{} {
	out := make([]map[string]interface{}, 0)
	for _, d := range s.registry.All() {
		f := pick(d)
		if f.IsEmpty() {
			continue
		}
		out = append(out, f.Serialize(map[string]interface{}{"dimension": d.Key()}))
	}

	return out
}

func (s *Selection) Focus() []Focus {
	return s.focus
}

// SetFocus keys raw[i] by the i-th assigned dimension and publishes focus.
func (s *Selection) SetFocus(raw []interface{}) {
	dims := s.Dimensions()
	n := len(raw)
	if len(dims) < n {
		n = len(dims)
	}

	focus := make([]Focus, 0, n)
	for i := 0; i < n; i++ {
		focus = append(focus, Focus{Dimension: dims[i].Key(), Value: raw[i]})
	}
	s.focus = focus

	s.bus.Publish(string(TopicFocus))
}

// Subscribe registers fn for the comma-separated topics until scope closes.
func (s *Selection) Subscribe(topics string, scope *Scope, fn func()) *Subscription {
	return s.bus.Subscribe(topics, scope, fn)
}

// Publish announces the comma-separated topics to every subscriber.
func (s *Selection) Publish(topics string) {
	s.bus.Publish(topics)
}

// Changed subscribes fn when it is given and publishes topics otherwise.
func (s *Selection) Changed(topics string, scope *Scope, fn func()) *Subscription {
	if fn == nil {
		s.bus.Publish(topics)
		return nil
	}

	return s.bus.Subscribe(topics, scope, fn)
}

// Filtering returns the dimension whose filter editor is open.
func (s *Selection) Filtering() (*Dimension, bool) {
	return s.filtering, s.filtering != nil
}

// Toggle opens the filter editor of d, closing any other one first. Calling it
// for the open dimension, or with nil, closes the editor.
func (s *Selection) Toggle(ctx context.Context, d *Dimension) {
	if d != nil && s.filtering == d {
		s.stopFiltering()
		return
	}
	if s.filtering != nil {
		s.stopFiltering()
	}
	if d == nil {
		return
	}

	d.filtering = true
	s.filtering = d
	s.LoadDistribution(ctx, d, nil)
}

// stopFiltering closes the editor and drops edits that were not applied.
func (s *Selection) stopFiltering() {
	d := s.filtering
	s.filtering = nil
	d.filtering = false

	s.RevertFilter(d)
}

// LoadDistribution starts fetching the distribution of d unless it is loaded
// or already loading, and reports whether a load started. done, if set, runs
// on the loop once the load finished.
func (s *Selection) LoadDistribution(ctx context.Context, d *Dimension, done func(err error)) bool {
	if s.loader == nil {
		s.logger.Debug("no distribution loader", zap.String("dimension", d.Key()))
		return false
	}
	if !d.beginLoad() {
		return false
	}

	desc := d.Descriptor()
	go func() {
		dist, err := s.loader.Distribution(ctx, desc)
		s.loop.Post(func() {
			s.completeLoad(d, dist, err, done)
		})
	}()

	return true
}

func (s *Selection) completeLoad(d *Dimension, dist *Distribution, err error, done func(err error)) {
	if err == nil && dist == nil {
		err = ErrNotLoaded
	}
	d.finishLoad(dist, err)

	if err != nil {
		s.metrics.load(outcomeFailure)
		s.logger.Warn("failed to load distribution", zap.String("dimension", d.Key()), zap.Error(err))
	} else {
		s.metrics.load(outcomeSuccess)
		s.logger.Debug("distribution loaded", zap.String("dimension", d.Key()), zap.Int("bins", len(dist.Counts)))
		s.bus.Publish(string(TopicDistribution))
	}

	if done != nil {
		done(err)
	}
}

// ApplyFilter saves the pending edits of d and publishes filters.
func (s *Selection) ApplyFilter(d *Dimension) {
	d.filter.Save()
	d.exclude.Save()
	s.bus.Publish(string(TopicFilters))
}

// RevertFilter drops the pending edits of d. Filters are published when
// that changed anything, so bound views follow the restored values.
func (s *Selection) RevertFilter(d *Dimension) {
	if !d.filter.Dirty() && !d.exclude.Dirty() {
		return
	}

	d.filter.Undo()
	d.exclude.Undo()
	s.bus.Publish(string(TopicFilters))
}

// ClearFilter empties both filters of d and applies the result.
func (s *Selection) ClearFilter(d *Dimension) {
	d.filter.Reset()
	d.exclude.Reset()
	s.ApplyFilter(d)
}

// Query builds the request fragment sent to the backend.
func (s *Selection) Query() *Query {
	dims := s.Dimensions()
	keys := make([]string, 0, len(dims))
	for _, d := range dims {
		keys = append(keys, d.Key())
	}

	focus := make([]Focus, 0, len(s.focus))
	focus = append(focus, s.focus...)

	return &Query{
		Dimensions: keys,
		Filters:    s.Filters(),
		Exclude:    s.Exclude(),
		Focus:      focus,
	}
}
