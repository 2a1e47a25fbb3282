package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/satriahrh/tawa/domain/entities"
	"github.com/satriahrh/tawa/domain/repositories"
)

// IngestEventsTableSQL creates the ingest_events table
const IngestEventsTableSQL = `
	CREATE TABLE IF NOT EXISTS ingest_events (
		timestamp DateTime64(3),
		owner_id String,
		record_id String,
		audio_path String,
		stage LowCardinality(String),
		detail String
	) ENGINE = MergeTree()
	ORDER BY (owner_id, timestamp)
	PARTITION BY toYYYYMM(timestamp)
`

const insertIngestEventSQL = `
	INSERT INTO ingest_events (timestamp, owner_id, record_id, audio_path, stage, detail)
	VALUES (?, ?, ?, ?, ?, ?)
`

// ClickHouseConfig holds ClickHouse connection configuration
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

// ClickHouseLog appends every ingest event to a ClickHouse table
type ClickHouseLog struct {
	conn   driver.Conn
	logger *zap.Logger
}

var _ repositories.IngestEventPublisher = (*ClickHouseLog)(nil)

// NewClickHouseLog connects, pings and creates the events table
func NewClickHouseLog(ctx context.Context, config ClickHouseConfig, logger *zap.Logger) (*ClickHouseLog, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{config.Addr},
		Auth: clickhouse.Auth{
			Database: config.Database,
			Username: config.Username,
			Password: config.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	if err := conn.Exec(ctx, IngestEventsTableSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create ingest_events table: %w", err)
	}

	logger.Info("Connected to ClickHouse", zap.String("addr", config.Addr))
	return &ClickHouseLog{conn: conn, logger: logger}, nil
}

// Publish implements repositories.IngestEventPublisher
func (l *ClickHouseLog) Publish(ctx context.Context, event entities.IngestEvent) error {
	err := l.conn.Exec(ctx, insertIngestEventSQL,
		event.Timestamp,
		event.OwnerID,
		event.RecordID,
		event.AudioPath,
		string(event.Stage),
		event.Detail,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ingest event: %w", err)
	}
	return nil
}

// StageCount is the number of events seen for one stage
type StageCount struct {
	Stage string `ch:"stage"`
	Count uint64 `ch:"count"`
}

// StageCounts summarizes events per stage since the given time
func (l *ClickHouseLog) StageCounts(ctx context.Context, since time.Time) ([]StageCount, error) {
	var counts []StageCount
	err := l.conn.Select(ctx, &counts, `
		SELECT stage, count() AS count
		FROM ingest_events
		WHERE timestamp >= ?
		GROUP BY stage
		ORDER BY stage
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query stage counts: %w", err)
	}
	return counts, nil
}

// Close closes the ClickHouse connection
func (l *ClickHouseLog) Close() error {
	return l.conn.Close()
}
