package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"sessionwatch/internal/logger"
	"sessionwatch/pkg/models"
)

// Config configures the ClickHouse store.
type Config struct {
	Addr        string
	Database    string
	Username    string
	Password    string
	DialTimeout time.Duration
}

// Store persists events and alerts in ClickHouse and serves the
// most-recent-first alert query for the status endpoints.
type Store struct {
	conn driver.Conn
}

// NewStore opens and pings a ClickHouse connection.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("clickhouse addr is empty")
	}
	if cfg.Database == "" {
		cfg.Database = "sessionwatch"
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}

	conn, err := ch.Open(&ch.Options{
		Addr: []string{cfg.Addr},
		Auth: ch.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout:     cfg.DialTimeout,
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	logger.Infof("ClickHouse store initialized: %s/%s", cfg.Addr, cfg.Database)
	return &Store{conn: conn}, nil
}

// WriteEvent inserts one event row.
func (s *Store) WriteEvent(ctx context.Context, event *models.Event) error {
	meta, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("marshal event metadata: %w", err)
	}

	err = s.conn.Exec(ctx, `
		INSERT INTO session_events
			(user_id, session_id, event_type, timestamp, metadata,
			 device_fingerprint, ip_address, user_agent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.UserID,
		event.SessionID,
		string(event.EventType),
		event.Timestamp,
		string(meta),
		event.DeviceFingerprint,
		event.IPAddress,
		event.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// WriteAlert inserts one alert row.
func (s *Store) WriteAlert(ctx context.Context, alert *models.Alert) error {
	meta, err := json.Marshal(alert.Metadata)
	if err != nil {
		return fmt.Errorf("marshal alert metadata: %w", err)
	}

	err = s.conn.Exec(ctx, `
		INSERT INTO security_alerts
			(alert_id, user_id, session_id, severity, event_type,
			 description, timestamp, metadata, resolved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.AlertID,
		alert.UserID,
		alert.SessionID,
		string(alert.Severity),
		string(alert.EventType),
		alert.Description,
		alert.Timestamp,
		string(meta),
		alert.Resolved,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// QueryAlerts returns a session's alerts, most recent first.
func (s *Store) QueryAlerts(ctx context.Context, sessionID string, limit int) ([]*models.Alert, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.conn.Query(ctx, `
		SELECT alert_id, user_id, session_id, severity, event_type,
		       description, timestamp, metadata, resolved
		FROM security_alerts
		WHERE session_id = ?
		ORDER BY timestamp DESC
		LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Alert, 0, limit)
	for rows.Next() {
		var (
			alert    models.Alert
			severity string
			event    string
			meta     string
		)
		if err := rows.Scan(
			&alert.AlertID,
			&alert.UserID,
			&alert.SessionID,
			&severity,
			&event,
			&alert.Description,
			&alert.Timestamp,
			&meta,
			&alert.Resolved,
		); err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		alert.Severity = models.Severity(severity)
		alert.EventType = models.EventType(event)
		if meta != "" {
			if err := json.Unmarshal([]byte(meta), &alert.Metadata); err != nil {
				logger.Warnf("Malformed alert metadata for %s: %v", alert.AlertID, err)
			}
		}
		out = append(out, &alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert rows: %w", err)
	}
	return out, nil
}

// Close closes the connection.
func (s *Store) Close() error {
	return s.conn.Close()
}
