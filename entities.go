package explorer

// ValueNumber is a numeric aggregate read from the backend.
type ValueNumber float64

type ValueResponse struct {
	Name  []interface{} `json:"name"`
	Key   []interface{} `json:"key"`
	Count ValueNumber   `json:"count"`
}

type ValuesResponse struct {
	Values []*ValueResponse `json:"values"`
}

// ItemRow is one cell group of the cross-tab data table.
type ItemRow struct {
	Dimensions map[string]interface{} `json:"dimensions"`
	Metrics    map[string]ValueNumber `json:"metrics"`
}

type ItemsResponse struct {
	Rows  []*ItemRow  `json:"rows"`
	Total ValueNumber `json:"total"`
}

type ItemsRequestFilter struct {
	Key       string
	Values    []interface{}
	Condition Condition
}

type ItemsRequestOrder struct {
	Key       string
	Direction string
}

type ItemsRequest struct {
	Limit   int
	Offset  int
	SortBy  []*ItemsRequestOrder
	Groups  []string
	Metrics []string
	Filters []*ItemsRequestFilter
}

// Metric is an aggregate column of the data table.
type Metric struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
}

// Column maps a dimension key to the SQL expression that computes it.
type Column struct {
	Key        string
	Expression string
}
