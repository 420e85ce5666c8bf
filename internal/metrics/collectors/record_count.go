package collectors

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
)

const RecordCountQuery = `SELECT COUNT(*) FROM notar.kv WHERE key LIKE 'record/%'`

type RecordCountCollector struct {
	db          *sql.DB
	recordCount *prometheus.Desc
}

func NewRecordCountCollector(db *sql.DB) *RecordCountCollector {
	return &RecordCountCollector{
		db: db,
		recordCount: prometheus.NewDesc(
			prometheus.BuildFQName("notar", "records", "total_count"),
			"Total stored record count",
			nil,
			prometheus.Labels{"source": "postgres"},
		),
	}
}

func (c *RecordCountCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.recordCount
}

func (c *RecordCountCollector) Collect(ch chan<- prometheus.Metric) {
	var count int64
	err := c.db.QueryRow(RecordCountQuery).Scan(&count)
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.recordCount, err)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.recordCount, prometheus.GaugeValue, float64(count))
}
