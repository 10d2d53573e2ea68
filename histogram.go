package explorer

import (
	"fmt"
	"math"
	"strconv"

	"github.com/aclements/go-moremath/scale"
)

const (
	barPadding     = 0.1
	countTicks     = 5
	axisTickWidth  = 50
	labelCharWidth = 7
	labelPadding   = 8
	axisHeight     = 20
	edgeMargin     = 10
)

// Range is a closed interval in data units.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// BinDomain returns the ordinal bin labels of dist: MinBin stepping by
// BinSize up to MaxBin, grown to at least dist.Bins entries. Growing prepends
// only while the first label is non-negative and always appends.
func BinDomain(dist *Distribution) ([]float64, error) {
	if dist == nil {
		return nil, ErrNotLoaded
	}
	if dist.BinSize <= 0 || math.IsNaN(dist.BinSize) || math.IsInf(dist.BinSize, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBinSize, dist.BinSize)
	}

	domain := make([]float64, 0)
	end := dist.MaxBin + dist.BinSize
	for i := 0; ; i++ {
		v := dist.MinBin + float64(i)*dist.BinSize
		if v >= end {
			break
		}
		domain = append(domain, v)
	}
	if len(domain) == 0 {
		return nil, fmt.Errorf("%w: min_bin %v, max_bin %v", ErrEmptyDomain, dist.MinBin, dist.MaxBin)
	}

	for len(domain) < dist.Bins {
		if first := domain[0]; first >= 0 {
			domain = append([]float64{first - dist.BinSize}, domain...)
		}
		domain = append(domain, domain[len(domain)-1]+dist.BinSize)
	}

	return domain, nil
}

// Size is a drawing area in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Margins struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// BarGeometry places one bin inside the content area. Y is measured from the
// top, so a zero count sits on the baseline at Y == content height.
type BarGeometry struct {
	Bin    float64 `json:"bin"`
	Count  float64 `json:"count"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Tick struct {
	Value    float64 `json:"value"`
	Position float64 `json:"position"`
	Label    string  `json:"label"`
}

// Layout is everything a renderer needs to draw the histogram.
type Layout struct {
	Margins    Margins       `json:"margins"`
	Content    Size          `json:"content"`
	Bars       []BarGeometry `json:"bars"`
	CountTicks []Tick        `json:"count_ticks"`
	AxisTicks  []Tick        `json:"axis_ticks"`
	// Brush is the brushed interval in content pixels, nil without a brush.
	Brush *Range `json:"brush,omitempty"`
}

// Histogram keeps a quantitative dimension's brush and its inclusion filter
// in sync and lays out the bars of its distribution.
type Histogram struct {
	dim    *Dimension
	domain []float64
	counts []float64
	extent Range

	brush  *Range
	redraw func()
}

// NewHistogram builds the histogram of d's loaded distribution and picks up
// the bounds already in its filter.
func NewHistogram(d *Dimension) (*Histogram, error) {
	dist, ok := d.Distribution()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotLoaded, d.Key())
	}

	domain, err := BinDomain(dist)
	if err != nil {
		return nil, fmt.Errorf("failed to build bin domain of %q: %w", d.Key(), err)
	}

	h := &Histogram{
		dim:    d,
		domain: domain,
		counts: make([]float64, len(domain)),
		extent: Range{Min: domain[0] - 1, Max: domain[len(domain)-1] + 1},
	}
	for _, c := range dist.Counts {
		i := int(math.Round((c.X - domain[0]) / dist.BinSize))
		if i >= 0 && i < len(h.counts) {
			h.counts[i] += c.Y
		}
	}
	h.SyncFromFilter()

	return h, nil
}

// Domain returns the ordinal bin labels.
func (h *Histogram) Domain() []float64 {
	return h.domain
}

// Extent returns the continuous domain of the brush and the axis.
func (h *Histogram) Extent() Range {
	return h.extent
}

// Brushed reports whether a brush is set.
func (h *Histogram) Brushed() bool {
	return h.brush != nil
}

// CurrentRange returns the brush, or the whole extent when there is none.
func (h *Histogram) CurrentRange() Range {
	if h.brush == nil {
		return h.extent
	}

	return *h.brush
}

// OnRedraw sets the callback run whenever the brush actually changes.
func (h *Histogram) OnRedraw(fn func()) {
	h.redraw = fn
}

// Bind resyncs the brush whenever filters are published.
func (h *Histogram) Bind(sel *Selection, scope *Scope) *Subscription {
	return sel.Subscribe(string(TopicFilters), scope, func() {
		h.SyncFromFilter()
	})
}

// SetRange brushes [min, max] and writes the rounded bounds to the filter.
// NaN stands for an unset bound: both unset clears the brush, one unset falls
// back to the extent. It reports whether anything changed.
func (h *Histogram) SetRange(min, max float64) bool {
	if math.IsNaN(min) && math.IsNaN(max) {
		return h.ClearRange()
	}

	r := h.normalize(min, max)
	if h.brush != nil && *h.brush == r && h.filterHolds(r) {
		return false
	}

	h.brush = &r
	h.dim.filter.Set(FieldMin, math.Round(r.Min))
	h.dim.filter.Set(FieldMax, math.Round(r.Max))
	h.signal()

	return true
}

// ClearRange removes the brush and the filter bounds.
func (h *Histogram) ClearRange() bool {
	_, hasMin := h.dim.filter.Get(FieldMin)
	_, hasMax := h.dim.filter.Get(FieldMax)
	if h.brush == nil && !hasMin && !hasMax {
		return false
	}

	h.brush = nil
	h.dim.filter.Set(FieldMin, nil)
	h.dim.filter.Set(FieldMax, nil)
	h.signal()

	return true
}

// SyncFromFilter moves the brush to the filter bounds without writing back.
func (h *Histogram) SyncFromFilter() bool {
	min, hasMin := h.dim.filter.Float(FieldMin)
	max, hasMax := h.dim.filter.Float(FieldMax)
	if !hasMin && !hasMax {
		if h.brush == nil {
			return false
		}
		h.brush = nil
		h.signal()
		return true
	}

	if !hasMin {
		min = math.NaN()
	}
	if !hasMax {
		max = math.NaN()
	}

	r := h.normalize(min, max)
	if h.brush != nil && *h.brush == r {
		return false
	}
	h.brush = &r
	h.signal()

	return true
}

// Brush applies a drag between pixel offsets x0 and x1 of a content area
// width pixels wide. A drag without extent clears the brush.
func (h *Histogram) Brush(x0, x1, width float64) bool {
	if width <= 0 || x0 == x1 {
		return h.ClearRange()
	}

	span := h.extent.Max - h.extent.Min
	return h.SetRange(h.extent.Min+x0/width*span, h.extent.Min+x1/width*span)
}

// filterHolds reports whether the filter already stores the bounds SetRange
// writes for r.
func (h *Histogram) filterHolds(r Range) bool {
	min, hasMin := h.dim.filter.Float(FieldMin)
	max, hasMax := h.dim.filter.Float(FieldMax)

	return hasMin && hasMax && min == math.Round(r.Min) && max == math.Round(r.Max)
}

func (h *Histogram) normalize(min, max float64) Range {
	if math.IsNaN(min) {
		min = h.extent.Min
	}
	if math.IsNaN(max) {
		max = h.extent.Max
	}
	if min > max {
		min, max = max, min
	}

	return Range{
		Min: math.Max(h.extent.Min, math.Min(min, h.extent.Max)),
		Max: math.Max(h.extent.Min, math.Min(max, h.extent.Max)),
	}
}

func (h *Histogram) signal() {
	if h.redraw != nil {
		h.redraw()
	}
}

// Layout computes margins, bar geometry, ticks and the brush position for an
// outer drawing area.
func (h *Histogram) Layout(outer Size) Layout {
	maxCount := 0.0
	for _, c := range h.counts {
		maxCount = math.Max(maxCount, c)
	}
	if maxCount == 0 {
		maxCount = 1
	}

	y := scale.Linear{Min: 0, Max: maxCount, Clamp: true}
	major, _ := y.Ticks(scale.TickOptions{Max: countTicks})

	longest := 0
	labels := make([]string, len(major))
	for i, v := range major {
		labels[i] = formatTick(v)
		if len(labels[i]) > longest {
			longest = len(labels[i])
		}
	}

	margins := Margins{
		Top:    edgeMargin,
		Right:  edgeMargin,
		Bottom: axisHeight,
		Left:   float64(longest*labelCharWidth + labelPadding),
	}
	content := Size{
		Width:  math.Max(0, outer.Width-margins.Left-margins.Right),
		Height: math.Max(0, outer.Height-margins.Top-margins.Bottom),
	}

	layout := Layout{
		Margins:    margins,
		Content:    content,
		Bars:       make([]BarGeometry, 0, len(h.domain)),
		CountTicks: make([]Tick, 0, len(major)),
	}

	band := content.Width / float64(len(h.domain))
	for i, bin := range h.domain {
		height := y.Map(h.counts[i]) * content.Height
		layout.Bars = append(layout.Bars, BarGeometry{
			Bin:    bin,
			Count:  h.counts[i],
			X:      float64(i)*band + band*barPadding/2,
			Y:      content.Height - height,
			Width:  band * (1 - barPadding),
			Height: height,
		})
	}

	for i, v := range major {
		layout.CountTicks = append(layout.CountTicks, Tick{
			Value:    v,
			Position: content.Height - y.Map(v)*content.Height,
			Label:    labels[i],
		})
	}

	x := scale.Linear{Min: h.extent.Min, Max: h.extent.Max, Clamp: true}
	maxTicks := int(content.Width / axisTickWidth)
	if maxTicks < 2 {
		maxTicks = 2
	}
	axis, _ := x.Ticks(scale.TickOptions{Max: maxTicks})
	layout.AxisTicks = make([]Tick, 0, len(axis))
	for _, v := range axis {
		layout.AxisTicks = append(layout.AxisTicks, Tick{
			Value:    v,
			Position: x.Map(v) * content.Width,
			Label:    formatTick(v),
		})
	}

	if h.brush != nil {
		layout.Brush = &Range{
			Min: x.Map(h.brush.Min) * content.Width,
			Max: x.Map(h.brush.Max) * content.Width,
		}
	}

	return layout
}

func formatTick(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
