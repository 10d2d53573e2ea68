package explorer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DimensionType is the closed set of dimension kinds.
type DimensionType int

const (
	Time DimensionType = iota + 1
	Categorical
	Quantitative
)

// Widget is the filter editor a dimension type needs.
type Widget string

const (
	WidgetTimeRange Widget = "time_range"
	WidgetLevels    Widget = "levels"
	WidgetHistogram Widget = "histogram"
)

func (t DimensionType) String() string {
	switch t {
	case Time:
		return "TimeDimension"
	case Categorical:
		return "CategoricalDimension"
	case Quantitative:
		return "QuantitativeDimension"
	}

	return fmt.Sprintf("DimensionType(%d)", int(t))
}

// ParseDimensionType accepts both the catalog names and short lower-case names.
func ParseDimensionType(s string) (DimensionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "timedimension", "time":
		return Time, nil
	case "categoricaldimension", "categorical":
		return Categorical, nil
	case "quantitativedimension", "quantitative":
		return Quantitative, nil
	}

	return 0, fmt.Errorf("%w: unknown type %q", ErrInvalidDescriptor, s)
}

func (t DimensionType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *DimensionType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	v, err := ParseDimensionType(s)
	if err != nil {
		return err
	}
	*t = v

	return nil
}

// AcceptedBy reports whether a dimension of this type may occupy zone.
func (t DimensionType) AcceptedBy(zone ZoneName) bool {
	if zone == Secondary && t == Time {
		return false
	}

	return true
}

// FilterWidget picks the editor used in the filter popup.
func (t DimensionType) FilterWidget() Widget {
	switch t {
	case Time:
		return WidgetTimeRange
	case Quantitative:
		return WidgetHistogram
	}

	return WidgetLevels
}

// Descriptor is the static part of a dimension as supplied by the catalog.
type Descriptor struct {
	Key      string        `json:"key"`
	Name     string        `json:"name"`
	Type     DimensionType `json:"type"`
	Category string        `json:"category,omitempty"`
}

// Bin is one bar of a distribution: X is the bin label, Y the count.
type Bin struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Level is one categorical value with its count.
type Level struct {
	Value interface{} `json:"value"`
	Count float64     `json:"count"`
}

// Distribution is the server-side summary of a dimension's values.
type Distribution struct {
	Counts  []Bin   `json:"counts"`
	MinBin  float64 `json:"min_bin"`
	MaxBin  float64 `json:"max_bin"`
	BinSize float64 `json:"bin_size"`
	Bins    int     `json:"bins"`

	Levels []Level `json:"levels,omitempty"`
}

// Dimension is a catalog entry plus the state the explorer attaches to it.
// It is only touched from the event loop.
type Dimension struct {
	desc Descriptor

	filter  *Filter
	exclude *Filter

	// zone is a back-reference by name; the Zone owns the relation.
	zone ZoneName

	filtering    bool
	loading      bool
	distribution *Distribution
}

func newDimension(desc Descriptor) *Dimension {
	return &Dimension{
		desc:    desc,
		filter:  NewFilter(),
		exclude: NewFilter(),
	}
}

func (d *Dimension) Key() string            { return d.desc.Key }
func (d *Dimension) Name() string           { return d.desc.Name }
func (d *Dimension) Type() DimensionType    { return d.desc.Type }
func (d *Dimension) Descriptor() Descriptor { return d.desc }
func (d *Dimension) Filter() *Filter        { return d.filter }
func (d *Dimension) Exclude() *Filter       { return d.exclude }
func (d *Dimension) Filtering() bool        { return d.filtering }
func (d *Dimension) Loading() bool          { return d.loading }
func (d *Dimension) FilterWidget() Widget   { return d.desc.Type.FilterWidget() }
func (d *Dimension) Distribution() (*Distribution, bool) {
	return d.distribution, d.distribution != nil
}

// Zone returns the zone the dimension is assigned to.
func (d *Dimension) Zone() (ZoneName, bool) {
	return d.zone, d.zone != ""
}

// beginLoad marks a load in flight. It returns false when a load is already
// running or the distribution is present.
func (d *Dimension) beginLoad() bool {
	if d.loading || d.distribution != nil {
		return false
	}
	d.loading = true

	return true
}

func (d *Dimension) finishLoad(dist *Distribution, err error) {
	d.loading = false
	if err != nil {
		return
	}
	d.distribution = dist
}
