package collectors

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
)

const BlockCountQuery = `SELECT COALESCE(jsonb_array_length(value), 0) FROM notar.kv WHERE key = 'chain'`

type BlockCountCollector struct {
	db         *sql.DB
	blockCount *prometheus.Desc
}

func NewBlockCountCollector(db *sql.DB) *BlockCountCollector {
	return &BlockCountCollector{
		db: db,
		blockCount: prometheus.NewDesc(
			prometheus.BuildFQName("notar", "chain", "block_count"),
			"Number of blocks in the ledger chain",
			nil,
			prometheus.Labels{"source": "postgres"},
		),
	}
}

func (c *BlockCountCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.blockCount
}

func (c *BlockCountCollector) Collect(ch chan<- prometheus.Metric) {
	var count int64
	err := c.db.QueryRow(BlockCountQuery).Scan(&count)
	if err != nil {
		if err == sql.ErrNoRows {
			// No chain persisted yet.
			ch <- prometheus.MustNewConstMetric(c.blockCount, prometheus.GaugeValue, 0)
			return
		}
		ch <- prometheus.NewInvalidMetric(c.blockCount, err)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.blockCount, prometheus.GaugeValue, float64(count))
}
