package explorer

import "fmt"

type keyUnion string

// UnionItemsResponse union data struct ItemsResponse.
func UnionItemsResponse(response ...*ItemsResponse) *ItemsResponse {
	if len(response) == 0 {
		return nil
	}

	result := &ItemsResponse{
		Rows:  make([]*ItemRow, 0),
		Total: 0,
	}

	index := make(map[keyUnion]int)

	for i := range response {
		r := response[i]
		if r == nil {
			continue
		}

		for j := range r.Rows {
			key := makeKeyUnionMap(r.Rows[j])
			if inx, ok := index[key]; ok {
				unionRowResponse(result.Rows[inx], r.Rows[j])
				continue
			}

			index[key] = len(result.Rows)
			result.Rows = append(result.Rows, cloneRow(r.Rows[j]))
		}

		result.Total += r.Total
	}

	return result
}

// UnionValuesResponse union data struct ValuesResponse.
func UnionValuesResponse(response ...*ValuesResponse) *ValuesResponse {
	if len(response) == 0 {
		return nil
	}

	values := make([]*ValueResponse, 0)

	index := make(map[keyUnion]int)
	for i := range response {
		r := response[i]
		if r == nil {
			continue
		}

		for j := range r.Values {
			key := makeKeyUnion(r.Values[j])
			if inx, ok := index[key]; ok {
				unionValueResponse(values[inx], r.Values[j])
				continue
			}

			index[key] = len(values)
			v := *r.Values[j]
			values = append(values, &v)
		}
	}

	return &ValuesResponse{
		Values: values,
	}
}

func makeKeyUnionMap(v *ItemRow) keyUnion {
	// fmt prints maps with sorted keys.
	return keyUnion(fmt.Sprintf("%v", v.Dimensions))
}

func makeKeyUnion(v *ValueResponse) keyUnion {
	return keyUnion(fmt.Sprintf("%v", v.Key))
}

func cloneRow(v *ItemRow) *ItemRow {
	row := &ItemRow{
		Dimensions: v.Dimensions,
		Metrics:    make(map[string]ValueNumber, len(v.Metrics)),
	}
	for k, m := range v.Metrics {
		row.Metrics[k] = m
	}

	return row
}

func unionRowResponse(a, b *ItemRow) {
	if a == nil || b == nil {
		return
	}

	if a.Metrics == nil {
		a.Metrics = make(map[string]ValueNumber, len(b.Metrics))
	}
	for k := range b.Metrics {
		a.Metrics[k] += b.Metrics[k]
	}
}

func unionValueResponse(a, b *ValueResponse) {
	if a == nil || b == nil {
		return
	}

	a.Count += b.Count
}
