package explorer

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
)

const (
	defaultBins        = 20
	defaultLevelsLimit = 100
)

// ReadRepository common read interface.
type ReadRepository interface {
	// Total returns total rows by query conditions.
	Total(ctx context.Context, req *ItemsRequest) (uint64, error)
	// Values returns list of allowed values with size by query conditions.
	Values(ctx context.Context, req *ItemsRequest) ([]*ValueResponse, error)
	// Grouped returns rows metrics by group filtered by query conditions.
	Grouped(ctx context.Context, req *ItemsRequest) ([]*ItemRow, error)
	// Metrics returns list of allowed metrics.
	Metrics() ([]*Metric, error)
}

// SQLRepositoryOption configures SQLRepository.
type SQLRepositoryOption func(r *SQLRepository)

func LoggerSQLRepositoryOption(logger *zap.Logger) SQLRepositoryOption {
	return func(r *SQLRepository) {
		r.logger = logger
	}
}

// BinsSQLRepositoryOption sets the bin count quantitative distributions aim for.
func BinsSQLRepositoryOption(bins int) SQLRepositoryOption {
	return func(r *SQLRepository) {
		r.bins = bins
	}
}

// LevelsLimitSQLRepositoryOption caps the levels returned for categorical dimensions.
func LevelsLimitSQLRepositoryOption(limit int) SQLRepositoryOption {
	return func(r *SQLRepository) {
		r.levelsLimit = limit
	}
}

func TotalColumnSQLRepositoryOption(name string) SQLRepositoryOption {
	return func(r *SQLRepository) {
		r.totalColumnName = name
	}
}

// SQLRepository sql implementation of ReadRepository and DistributionLoader.
type SQLRepository struct {
	conn   *sql.DB
	logger *zap.Logger

	columns map[string]*Column
	metrics []*Metric

	// contains table name or sql expression like table.
	table           string
	totalColumnName string

	bins        int
	levelsLimit int
}

// NewSQLRepository returns new instance of SQLRepository.
func NewSQLRepository(
	connection *sql.DB, table string, columns []*Column, metrics []*Metric, options ...SQLRepositoryOption,
) *SQLRepository {
	mColumns := make(map[string]*Column, len(columns))
	for i := range columns {
		mColumns[columns[i].Key] = columns[i]
	}

	r := &SQLRepository{
		conn:        connection,
		logger:      zap.NewNop(),
		table:       table,
		columns:     mColumns,
		metrics:     metrics,
		bins:        defaultBins,
		levelsLimit: defaultLevelsLimit,
	}
	for _, opt := range options {
		opt(r)
	}

	return r
}

func (r *SQLRepository) Metrics() ([]*Metric, error) {
	return r.metrics, nil
}

func (r *SQLRepository) Ping(ctx context.Context) error {
	_, err := r.conn.ExecContext(ctx, `SELECT 1`)
	return err
}

func (r *SQLRepository) Total(ctx context.Context, req *ItemsRequest) (uint64, error) {
	query := ""
	params := make([]interface{}, 0)

	r.applySelectTotal(req, &query)
	query += fmt.Sprintf(` FROM %s`, r.table)
	r.applyWhere(req.Filters, &query, &params)

	r.logQuery(query, params)

	var total interface{}
	if err := r.conn.QueryRowContext(ctx, query, params...).Scan(&total); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to exec query: %w, query: %s, params: %v", err, query, params)
	}

	return uint64(toValueNumber(total)), nil
}

func (r *SQLRepository) Values(ctx context.Context, req *ItemsRequest) ([]*ValueResponse, error) {
	query := ``
	params := make([]interface{}, 0)

	r.applySelectValue(req, &query)
	query += fmt.Sprintf(` FROM %s`, r.table)
	r.applyWhere(req.Filters, &query, &params)
	r.applyGroup(req, &query)
	r.applyOrder(req, &query)
	r.applyLimit(req, &query)

	r.logQuery(query, params)

	rows, err := r.conn.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to exec query: %w, query: %s, params: %v", err, query, params)
	}
	defer rows.Close()

	groups := r.knownGroups(req)
	response := make([]*ValueResponse, 0)
	for rows.Next() {
		dest := scanDest(len(groups) + 1)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		itemResp := &ValueResponse{
			Key:  make([]interface{}, 0, len(groups)),
			Name: make([]interface{}, 0, len(groups)),
		}
		for i := range dest {
			v := toScalar(*(dest[i].(*interface{})))
			if i < len(groups) {
				itemResp.Name = append(itemResp.Name, groups[i])
				itemResp.Key = append(itemResp.Key, v)
			} else {
				itemResp.Count = toValueNumber(v)
			}
		}
		response = append(response, itemResp)
	}

	return response, rows.Err()
}

func (r *SQLRepository) Grouped(ctx context.Context, req *ItemsRequest) ([]*ItemRow, error) {
	query := ""
	params := make([]interface{}, 0)

	metrics := r.selectedMetrics(req)
	r.applySelect(req, metrics, &query)
	query += fmt.Sprintf(` FROM %s`, r.table)
	r.applyWhere(req.Filters, &query, &params)
	r.applyGroup(req, &query)
	r.applyOrder(req, &query)
	r.applyLimit(req, &query)

	r.logQuery(query, params)

	rows, err := r.conn.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to exec query: %w, query: %s, params: %v", err, query, params)
	}
	defer rows.Close()

	groups := r.knownGroups(req)
	response := make([]*ItemRow, 0)
	for rows.Next() {
		dest := scanDest(len(groups) + len(metrics))
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		itemResp := &ItemRow{
			Dimensions: make(map[string]interface{}, len(groups)),
			Metrics:    make(map[string]ValueNumber, len(metrics)),
		}
		for i := range dest {
			v := toScalar(*(dest[i].(*interface{})))
			if i < len(groups) {
				itemResp.Dimensions[groups[i]] = v
			} else {
				itemResp.Metrics[metrics[i-len(groups)].Name] = toValueNumber(v)
			}
		}
		response = append(response, itemResp)
	}

	return response, rows.Err()
}

// Distribution loads the summary of desc: binned counts for quantitative
// dimensions, levels otherwise.
func (r *SQLRepository) Distribution(ctx context.Context, desc Descriptor) (*Distribution, error) {
	column, exists := r.getColumn(desc.Key)
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDimension, desc.Key)
	}

	if desc.Type == Quantitative {
		return r.histogram(ctx, column)
	}

	return r.levels(ctx, desc)
}

func (r *SQLRepository) histogram(ctx context.Context, column *Column) (*Distribution, error) {
	query := fmt.Sprintf(
		`SELECT min(%[1]s) AS min_value, max(%[1]s) AS max_value FROM %[2]s WHERE %[1]s IS NOT NULL`,
		column.Expression, r.table)
	r.logQuery(query, nil)

	var minValue, maxValue sql.NullFloat64
	if err := r.conn.QueryRowContext(ctx, query).Scan(&minValue, &maxValue); err != nil {
		return nil, fmt.Errorf("failed to exec query: %w, query: %s", err, query)
	}

	if !minValue.Valid || !maxValue.Valid {
		return &Distribution{Counts: []Bin{}, BinSize: 1, Bins: r.bins}, nil
	}

	size := niceBinSize(maxValue.Float64-minValue.Float64, r.bins)
	minBin := math.Floor(minValue.Float64/size) * size
	maxBin := math.Floor(maxValue.Float64/size) * size

	query = fmt.Sprintf(
		`SELECT CAST((%[1]s - ?) / ? AS INTEGER) AS bin, count(*) AS %[3]s FROM %[2]s `+
			`WHERE %[1]s IS NOT NULL GROUP BY bin ORDER BY bin`,
		column.Expression, r.table, r.getTotalColumnName())
	params := []interface{}{minBin, size}
	r.logQuery(query, params)

	rows, err := r.conn.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to exec query: %w, query: %s, params: %v", err, query, params)
	}
	defer rows.Close()

	counts := make([]Bin, 0)
	for rows.Next() {
		var bin, count interface{}
		if err := rows.Scan(&bin, &count); err != nil {
			return nil, err
		}

		index, _ := toFloat(toScalar(bin))
		counts = append(counts, Bin{
			X: minBin + index*size,
			Y: float64(toValueNumber(toScalar(count))),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &Distribution{
		Counts:  counts,
		MinBin:  minBin,
		MaxBin:  maxBin,
		BinSize: size,
		Bins:    r.bins,
	}, nil
}

func (r *SQLRepository) levels(ctx context.Context, desc Descriptor) (*Distribution, error) {
	order := &ItemsRequestOrder{Key: r.getTotalColumnName(), Direction: "desc"}
	if desc.Type == Time {
		order = &ItemsRequestOrder{Key: desc.Key, Direction: "asc"}
	}

	values, err := r.Values(ctx, &ItemsRequest{
		Groups: []string{desc.Key},
		SortBy: []*ItemsRequestOrder{order},
		Limit:  r.levelsLimit,
	})
	if err != nil {
		return nil, err
	}

	levels := make([]Level, 0, len(values))
	for _, v := range values {
		if len(v.Key) == 0 {
			continue
		}
		levels = append(levels, Level{Value: v.Key[0], Count: float64(v.Count)})
	}

	return &Distribution{Counts: []Bin{}, Levels: levels}, nil
}

// niceBinSize returns a 1, 2 or 5 times power of ten step splitting span
// into at most bins bins.
func niceBinSize(span float64, bins int) float64 {
	if span <= 0 || bins <= 0 {
		return 1
	}

	raw := span / float64(bins)
	magnitude := math.Pow(10, math.Floor(math.Log10(raw)))
	for _, m := range []float64{1, 2, 5} {
		if raw <= m*magnitude {
			return m * magnitude
		}
	}

	return 10 * magnitude
}

func scanDest(n int) []interface{} {
	dest := make([]interface{}, n)
	for i := range dest {
		dest[i] = new(interface{})
	}

	return dest
}

func (r *SQLRepository) logQuery(query string, params []interface{}) {
	r.logger.Debug("sql query", zap.String("query", query), zap.Any("params", params))
}

// knownGroups drops groups without a column, as the SELECT does.
func (r *SQLRepository) knownGroups(req *ItemsRequest) []string {
	groups := make([]string, 0, len(req.Groups))
	for _, item := range req.Groups {
		if _, exists := r.getColumn(item); exists {
			groups = append(groups, item)
		}
	}

	return groups
}

func (r *SQLRepository) selectedMetrics(req *ItemsRequest) []*Metric {
	if len(req.Metrics) == 0 {
		return r.metrics
	}

	out := make([]*Metric, 0, len(req.Metrics))
	for _, m := range r.metrics {
		for _, name := range req.Metrics {
			if m.Name == name {
				out = append(out, m)
				break
			}
		}
	}

	return out
}

func (r *SQLRepository) groupExpressions(req *ItemsRequest) []string {
	dimGroup := make([]string, 0, len(req.Groups))
	for _, item := range r.knownGroups(req) {
		dimGroup = append(dimGroup, r.columns[item].Expression)
	}

	return dimGroup
}

func (r *SQLRepository) applyGroup(req *ItemsRequest, query *string) {
	if dimGroup := r.groupExpressions(req); len(dimGroup) > 0 {
		*query += ` GROUP BY ` + strings.Join(dimGroup, `,`)
	}
}

func (r *SQLRepository) applyOrder(req *ItemsRequest, query *string) {
	sortBy := make([]string, 0, len(req.SortBy))
	for _, item := range req.SortBy {
		key, exists := r.orderKey(item.Key)
		if !exists {
			continue
		}

		direction := strings.ToLower(item.Direction)
		if direction != "asc" && direction != "desc" {
			direction = "asc"
		}
		sortBy = append(sortBy, fmt.Sprintf(`%s %s`, key, direction))
	}

	if len(sortBy) > 0 {
		*query += ` ORDER BY ` + strings.Join(sortBy, `,`)
	}
}

// orderKey resolves a sort key to a column expression or a select alias.
func (r *SQLRepository) orderKey(key string) (string, bool) {
	if column, exists := r.getColumn(key); exists {
		return column.Expression, true
	}
	if key == r.getTotalColumnName() {
		return key, true
	}
	for _, m := range r.metrics {
		if m.Name == key {
			return key, true
		}
	}

	return "", false
}

func (r *SQLRepository) getColumn(key string) (*Column, bool) {
	if column, ok := r.columns[key]; ok {
		return column, true
	}
	return nil, false
}

func (r *SQLRepository) applyWhere(filters []*ItemsRequestFilter, query *string, params *[]interface{}) {
	where := make([]string, 0, len(filters))

	for _, filter := range filters {
		column, exists := r.getColumn(filter.Key)
		if !exists || len(filter.Values) == 0 {
			continue
		}

		key := column.Expression
		in := strings.TrimRight(strings.Repeat("?,", len(filter.Values)), ",")

		switch filter.Condition {
		case CondEq:
			where = append(where, fmt.Sprintf(`%s IN (%s)`, key, in))
			*params = append(*params, filter.Values...)

		case CondNotEq:
			where = append(where, fmt.Sprintf(`%s NOT IN (%s)`, key, in))
			*params = append(*params, filter.Values...)

		case CondLike:
			where = append(where, fmt.Sprintf(`%s LIKE ?`, key))
			*params = append(*params, fmt.Sprintf(`%%%v%%`, filter.Values[0]))

		case CondGreater, CondGreaterOrEq, CondLess, CondLessOrEq:
			where = append(where, fmt.Sprintf(`%s %s ?`, key, filter.Condition))
			*params = append(*params, filter.Values[0])

		case CondNotBetween:
			if len(filter.Values) != 2 {
				r.logger.Warn("skip malformed filter",
					zap.String("key", filter.Key), zap.Int("values", len(filter.Values)))
				continue
			}
			where = append(where, fmt.Sprintf(`NOT (%s BETWEEN ? AND ?)`, key))
			*params = append(*params, filter.Values...)

		default:
			where = append(where, fmt.Sprintf(`%s IN (%s)`, key, in))
			*params = append(*params, filter.Values...)
		}
	}

	if len(where) > 0 {
		*query += ` WHERE ` + strings.Join(where, ` AND `)
	}
}

func (r *SQLRepository) applySelectTotal(req *ItemsRequest, query *string) {
	if dimGroup := r.groupExpressions(req); len(dimGroup) > 0 {
		*query += fmt.Sprintf(`SELECT uniq(%s) AS %s`, strings.Join(dimGroup, `,`), r.getTotalColumnName())
		return
	}

	*query += fmt.Sprintf(`SELECT count(*) AS %s`, r.getTotalColumnName())
}

func (r *SQLRepository) getTotalColumnName() string {
	if r.totalColumnName == "" {
		return "total"
	}

	return r.totalColumnName
}

func (r *SQLRepository) applySelectValue(req *ItemsRequest, query *string) {
	*query += `SELECT `

	if dimGroup := r.groupExpressions(req); len(dimGroup) > 0 {
		*query += strings.Join(dimGroup, `,`) + `, `
	}
	*query += fmt.Sprintf(`count(*) AS %s`, r.getTotalColumnName())
}

func (r *SQLRepository) applySelect(req *ItemsRequest, metrics []*Metric, query *string) {
	parts := make([]string, 0, 2)
	if dimGroup := r.groupExpressions(req); len(dimGroup) > 0 {
		parts = append(parts, strings.Join(dimGroup, `,`))
	}

	selected := make([]string, 0, len(metrics))
	for i := range metrics {
		m := metrics[i]
		selected = append(selected, m.Expression+` AS `+m.Name)
	}
	if len(selected) > 0 {
		parts = append(parts, strings.Join(selected, `,`))
	}

	*query += `SELECT ` + strings.Join(parts, `, `)
}

func (r *SQLRepository) applyLimit(req *ItemsRequest, query *string) {
	if req.Limit > 0 && req.Offset > 0 {
		*query += fmt.Sprintf(` LIMIT %d OFFSET %d`, req.Limit, req.Offset)
	} else if req.Limit > 0 {
		*query += fmt.Sprintf(` LIMIT %d`, req.Limit)
	}
}
