package explorer

// Query is the request fragment every backend view is fetched with.
type Query struct {
	Dimensions []string                 `json:"dimensions"`
	Filters    []map[string]interface{} `json:"filters"`
	Exclude    []map[string]interface{} `json:"exclude"`
	Focus      []Focus                  `json:"focus"`
}

// ItemsRequest translates the fragment into a grouped repository request.
// Entries without a dimension key are skipped.
func (q *Query) ItemsRequest() *ItemsRequest {
	req := &ItemsRequest{
		Groups:  append([]string(nil), q.Dimensions...),
		Filters: make([]*ItemsRequestFilter, 0),
	}

	for _, f := range q.Filters {
		req.Filters = append(req.Filters, includeConditions(f)...)
	}
	for _, f := range q.Exclude {
		req.Filters = append(req.Filters, excludeConditions(f)...)
	}
	for _, f := range q.Focus {
		if f.Dimension == "" || f.Value == nil {
			continue
		}
		req.Filters = append(req.Filters, &ItemsRequestFilter{
			Key:       f.Dimension,
			Values:    []interface{}{f.Value},
			Condition: CondEq,
		})
	}

	return req
}

func fragmentKey(f map[string]interface{}) string {
	key, _ := f["dimension"].(string)
	return key
}

func includeConditions(f map[string]interface{}) []*ItemsRequestFilter {
	key := fragmentKey(f)
	if key == "" {
		return nil
	}

	out := make([]*ItemsRequestFilter, 0)
	bound := func(field Field, cond Condition) {
		if v, ok := f[string(field)]; ok && v != nil {
			out = append(out, &ItemsRequestFilter{Key: key, Values: []interface{}{v}, Condition: cond})
		}
	}
	bound(FieldMin, CondGreaterOrEq)
	bound(FieldMax, CondLessOrEq)
	bound(FieldMinTime, CondGreaterOrEq)
	bound(FieldMaxTime, CondLessOrEq)

	if levels := toSlice(f[string(FieldLevels)]); len(levels) > 0 {
		out = append(out, &ItemsRequestFilter{Key: key, Values: levels, Condition: CondEq})
	}

	return out
}

func excludeConditions(f map[string]interface{}) []*ItemsRequestFilter {
	key := fragmentKey(f)
	if key == "" {
		return nil
	}

	out := make([]*ItemsRequestFilter, 0)
	lower, hasLower := firstOf(f, FieldMin, FieldMinTime)
	upper, hasUpper := firstOf(f, FieldMax, FieldMaxTime)
	switch {
	case hasLower && hasUpper:
		out = append(out, &ItemsRequestFilter{Key: key, Values: []interface{}{lower, upper}, Condition: CondNotBetween})
	case hasLower:
		out = append(out, &ItemsRequestFilter{Key: key, Values: []interface{}{lower}, Condition: CondLess})
	case hasUpper:
		out = append(out, &ItemsRequestFilter{Key: key, Values: []interface{}{upper}, Condition: CondGreater})
	}

	if levels := toSlice(f[string(FieldLevels)]); len(levels) > 0 {
		out = append(out, &ItemsRequestFilter{Key: key, Values: levels, Condition: CondNotEq})
	}

	return out
}

func firstOf(f map[string]interface{}, fields ...Field) (interface{}, bool) {
	for _, field := range fields {
		if v, ok := f[string(field)]; ok && v != nil {
			return v, true
		}
	}

	return nil, false
}
