//go:build integration
// +build integration

package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"testing"
	"time"

	_ "github.com/ClickHouse/clickhouse-go"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vench/explorer"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	setupNameDB     = "test_db"
	setupUserDB     = "default"
	setupPasswordDB = ""

	setupHostDB string
	setupPortDB nat.Port
)

func setupClickHouse(ctx context.Context) (testcontainers.Container, error) {
	req := testcontainers.ContainerRequest{
		Image: "clickhouse/clickhouse-server",
		Env: map[string]string{
			"CLICKHOUSE_DB":       setupNameDB,
			"CLICKHOUSE_USER":     setupUserDB,
			"CLICKHOUSE_PASSWORD": setupPasswordDB,
		},
		ExposedPorts: []string{
			"8123/tcp",
			"9000/tcp",
		},
		WaitingFor: wait.ForAll(
			wait.ForHTTP("/ping").WithPort("8123/tcp").WithStatusCodeMatcher(
				func(status int) bool {
					return status == http.StatusOK
				},
			),
		),
	}

	chContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generic container: %w", err)
	}

	setupHostDB, err = chContainer.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get host: %w", err)
	}

	setupPortDB, err = chContainer.MappedPort(ctx, "9000/tcp")
	if err != nil {
		return nil, fmt.Errorf("failed to get port: %w", err)
	}

	return chContainer, nil
}

func TestMain(m *testing.M) {
	ctx := context.Background()
	cont, err := setupClickHouse(ctx)
	if err != nil {
		log.Fatalf("failed to setup clickhouse: %v", err)

		return
	}

	if err = initClickHouseDB(ctx); err != nil {
		log.Fatalf("failed to init DB clickhouse: %v", err)

		return
	}

	exitVal := m.Run()

	cont.Terminate(ctx)

	os.Exit(exitVal)
}

func dataSourceNameDB() string {
	return fmt.Sprintf(
		"tcp://%s:%d?debug=true&database=%s&username=%s&password=%s",
		setupHostDB, setupPortDB.Int(), setupNameDB, setupUserDB, setupPasswordDB)
}

func openRepository(t *testing.T) *explorer.SQLRepository {
	t.Helper()

	conn, err := sql.Open("clickhouse", dataSourceNameDB())
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, conn.Close())
	})

	return initRepository(t, conn)
}

func TestClickhouse_SQLRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openRepository(t)
	require.NoError(t, repo.Ping(ctx))

	// check total
	total, err := repo.Total(ctx, &explorer.ItemsRequest{})
	require.NoError(t, err)
	require.Equal(t, uint64(6), total)

	// check values
	values, err := repo.Values(ctx, &explorer.ItemsRequest{
		Groups: []string{"hashtags"},
		SortBy: []*explorer.ItemsRequestOrder{
			{Key: "total", Direction: "desc"},
			{Key: "hashtags", Direction: "asc"},
		},
	})
	require.NoError(t, err)

	require.Equal(t, []*explorer.ValueResponse{
		{Name: []interface{}{"hashtags"}, Key: []interface{}{"#golang"}, Count: 3},
		{Name: []interface{}{"hashtags"}, Key: []interface{}{"#rust"}, Count: 2},
		{Name: []interface{}{"hashtags"}, Key: []interface{}{"#zig"}, Count: 1},
	}, values)
}

func TestClickhouse_Distribution(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openRepository(t)

	dist, err := repo.Distribution(ctx, explorer.Descriptor{Key: "words", Type: explorer.Quantitative})
	require.NoError(t, err)
	require.Equal(t, &explorer.Distribution{
		Counts: []explorer.Bin{
			{X: 0, Y: 1},
			{X: 10, Y: 2},
			{X: 20, Y: 1},
			{X: 30, Y: 1},
			{X: 40, Y: 1},
		},
		MinBin:  0,
		MaxBin:  40,
		BinSize: 10,
		Bins:    5,
	}, dist)

	domain, err := explorer.BinDomain(dist)
	require.NoError(t, err)
	require.Equal(t, []float64{0, 10, 20, 30, 40}, domain)

	dist, err = repo.Distribution(ctx, explorer.Descriptor{Key: "hashtags", Type: explorer.Categorical})
	require.NoError(t, err)
	require.Len(t, dist.Levels, 3)
	require.Equal(t, explorer.Level{Value: "#golang", Count: 3}, dist.Levels[0])
}

func TestClickhouse_Selection(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openRepository(t)

	registry, err := explorer.NewRegistry([]explorer.Descriptor{
		{Key: "time", Type: explorer.Time},
		{Key: "hashtags", Type: explorer.Categorical},
		{Key: "words", Type: explorer.Quantitative},
	})
	require.NoError(t, err)

	sel := explorer.NewSelection(registry,
		explorer.LoggerSelectionOption(zaptest.NewLogger(t)),
		explorer.LoaderSelectionOption(repo),
	)
	scope := explorer.NewScope()
	defer scope.Close()

	table := explorer.NewTableView(ctx, sel, repo, scope)
	require.NoError(t, sel.Zones().Assign(explorer.Primary, "hashtags"))

	words, ok := registry.Get("words")
	require.True(t, ok)

	sel.Toggle(ctx, words)
	require.Eventually(t, func() bool {
		sel.Loop().RunPending()
		_, loaded := words.Distribution()
		return loaded && !table.Loading()
	}, 10*time.Second, 10*time.Millisecond)

	h, err := explorer.NewHistogram(words)
	require.NoError(t, err)
	require.True(t, h.SetRange(5, 40))
	sel.ApplyFilter(words)

	require.Eventually(t, func() bool {
		sel.Loop().RunPending()
		return !table.Loading()
	}, 10*time.Second, 10*time.Millisecond)

	require.NoError(t, table.Err())
	require.Equal(t, []*explorer.ItemRow{
		{
			Dimensions: map[string]interface{}{"hashtags": "#golang"},
			Metrics:    map[string]explorer.ValueNumber{"total": 3},
		},
		{
			Dimensions: map[string]interface{}{"hashtags": "#rust"},
			Metrics:    map[string]explorer.ValueNumber{"total": 1},
		},
		{
			Dimensions: map[string]interface{}{"hashtags": "#zig"},
			Metrics:    map[string]explorer.ValueNumber{"total": 1},
		},
	}, table.Rows())
}

func initRepository(t *testing.T, db *sql.DB) *explorer.SQLRepository {
	return explorer.NewSQLRepository(db, "messages",
		[]*explorer.Column{
			{
				Key:        "time",
				Expression: "toDate(created)",
			},
			{
				Key:        "hashtags",
				Expression: "tag",
			},
			{
				Key:        "words",
				Expression: "words",
			},
		},
		[]*explorer.Metric{
			{
				Name:       "total",
				Expression: "count(*)",
			},
		},
		explorer.LoggerSQLRepositoryOption(zaptest.NewLogger(t)),
		explorer.BinsSQLRepositoryOption(5),
	)
}

func initClickHouseDB(ctx context.Context) error {
	s := dataSourceNameDB()
	db, err := sql.Open("clickhouse", s)
	if err != nil {
		return fmt.Errorf("failed to open DB: %w", err)
	}
	defer db.Close()

	if _, err = db.ExecContext(ctx, `DROP TABLE IF EXISTS messages`); err != nil {
		return fmt.Errorf("failed to drop table `messages`: %w", err)
	}

	if _, err = db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS messages (
        mid UInt32,
        tag String,
        lang String,
        words UInt32 DEFAULT 0,
        created Date
    )
    ENGINE = MergeTree()
    ORDER BY (created)`); err != nil {
		return fmt.Errorf("failed to create table `messages`: %w", err)
	}

	messages := []struct {
		tag     string
		lang    string
		words   int
		created time.Time
	}{
		{tag: "#golang", lang: "en", words: 12, created: time.Date(2022, 10, 1, 12, 0, 0, 0, time.UTC)},
		{tag: "#golang", lang: "de", words: 31, created: time.Date(2022, 10, 1, 15, 0, 0, 0, time.UTC)},
		{tag: "#rust", lang: "en", words: 7, created: time.Date(2022, 10, 1, 18, 0, 0, 0, time.UTC)},
		{tag: "#rust", lang: "en", words: 44, created: time.Date(2022, 10, 2, 9, 0, 0, 0, time.UTC)},
		{tag: "#golang", lang: "fr", words: 18, created: time.Date(2022, 10, 3, 11, 0, 0, 0, time.UTC)},
		{tag: "#zig", lang: "en", words: 25, created: time.Date(2022, 10, 3, 20, 0, 0, 0, time.UTC)},
	}

	scope, err := db.Begin()
	if err != nil {
		return err
	}

	stmt, err := scope.Prepare("INSERT INTO messages(tag, lang, words, created) values(?,?,?,?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert into `messages`: %w", err)
	}
	defer stmt.Close()

	for i := range messages {
		m := messages[i]
		if _, err = stmt.Exec(m.tag, m.lang, m.words, m.created); err != nil {
			return fmt.Errorf("failed to execute query insert `messages`: %w", err)
		}
	}

	if err = scope.Commit(); err != nil {
		return fmt.Errorf("failed to commit scope `messages`: %w", err)
	}

	return nil
}
