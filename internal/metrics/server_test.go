package metrics_test

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/KIWI0912/notar/internal/metrics"
	"github.com/KIWI0912/notar/internal/metrics/collectors"
)

func TestCreateMetricsServer(t *testing.T) {
	t.Run("StartServer", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		// Collectors are gathered in no guaranteed order.
		mock.MatchExpectationsInOrder(false)

		mock.ExpectQuery(regexp.QuoteMeta(collectors.RecordCountQuery)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
		mock.ExpectQuery(regexp.QuoteMeta(collectors.ConfirmedRecordCountQuery)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
		mock.ExpectQuery(regexp.QuoteMeta(collectors.BlockCountQuery)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

		server, err := metrics.CreateMetricsServer(db, "127.0.0.1:21120")
		require.NoError(t, err)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			require.NoError(t, server.Shutdown(ctx))
		}()

		time.Sleep(100 * time.Millisecond)

		resp, err := http.Get("http://127.0.0.1:21120/metrics")
		require.NoError(t, err, "Failed to connect to metrics server")

		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode, "Expected status code 200, body: %s", body)

		require.Contains(t, string(body), `notar_records_total_count{source="postgres"} 12`)
		require.Contains(t, string(body), `notar_records_confirmed_count{source="postgres"} 7`)
		require.Contains(t, string(body), `notar_chain_block_count{source="postgres"} 3`)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("WhenInvalidAddress", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		_, err = metrics.CreateMetricsServer(db, "invalid-address😆")
		require.Error(t, err)
	})
}
