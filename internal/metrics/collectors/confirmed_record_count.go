package collectors

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
)

const ConfirmedRecordCountQuery = `SELECT COUNT(*) FROM notar.kv WHERE key LIKE 'record/%' AND value->>'chain_status' = 'confirmed'`

type ConfirmedRecordCountCollector struct {
	db             *sql.DB
	confirmedCount *prometheus.Desc
}

func NewConfirmedRecordCountCollector(db *sql.DB) *ConfirmedRecordCountCollector {
	return &ConfirmedRecordCountCollector{
		db: db,
		confirmedCount: prometheus.NewDesc(
			prometheus.BuildFQName("notar", "records", "confirmed_count"),
			"Stored records whose anchoring block is confirmed on the chain",
			nil,
			prometheus.Labels{"source": "postgres"},
		),
	}
}

func (c *ConfirmedRecordCountCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.confirmedCount
}

func (c *ConfirmedRecordCountCollector) Collect(ch chan<- prometheus.Metric) {
	var count int64
	err := c.db.QueryRow(ConfirmedRecordCountQuery).Scan(&count)
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.confirmedCount, err)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.confirmedCount, prometheus.GaugeValue, float64(count))
}
