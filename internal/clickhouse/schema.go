package clickhouse

import (
	"context"
	"fmt"
	"strings"
)

const (
	// TailLinesTable receives matched lines
	TailLinesTable = "tail_lines"
	// TailMetricsTable receives per-poll metrics
	TailMetricsTable = "tail_metrics"
)

var schemaStatements = []string{
	`CREATE DATABASE IF NOT EXISTS {db}`,
	`CREATE TABLE IF NOT EXISTS {db}.tail_lines (
		timestamp    DateTime64(3),
		run_id       String,
		hostname     LowCardinality(String),
		target       LowCardinality(String),
		file_path    String,
		file_key     String,
		batch_offset UInt64,
		seq          UInt32,
		line         String,
		line_hash    FixedString(64)
	) ENGINE = ReplacingMergeTree
	ORDER BY (file_key, batch_offset, seq)
	TTL toDateTime(timestamp) + INTERVAL {ttl} DAY`,
	`CREATE TABLE IF NOT EXISTS {db}.tail_metrics (
		timestamp     DateTime64(3),
		run_id        String,
		target        LowCardinality(String),
		file_path     String,
		status        LowCardinality(String),
		lines_matched UInt32,
		bytes_read    UInt64,
		duration_ms   UInt64,
		error_message String
	) ENGINE = MergeTree
	ORDER BY (target, timestamp)
	TTL toDateTime(timestamp) + INTERVAL {ttl} DAY`,
}

// EnsureSchema creates the database and the sink tables if they do not exist
func (c *Client) EnsureSchema(ctx context.Context, retentionDays int) error {
	if retentionDays < 1 {
		return fmt.Errorf("retention must be at least 1 day, got %d", retentionDays)
	}
	for _, stmt := range schemaStatements {
		if err := c.Exec(ctx, renderSchema(stmt, c.database, retentionDays)); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func renderSchema(stmt, database string, retentionDays int) string {
	return strings.NewReplacer(
		"{db}", database,
		"{ttl}", fmt.Sprint(retentionDays),
	).Replace(stmt)
}
