// Package repository - доступ к PostgreSQL: журнал событий риск-движка,
// журнал исполненных тикетов и персистентные лимиты.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"execgate/internal/models"
)

// EventRepository - работа с таблицей risk_events
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository создает новый экземпляр репозитория
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create записывает событие риск-движка
func (r *EventRepository) Create(ctx context.Context, event *models.RiskEvent) error {
	query := `
		INSERT INTO risk_events (timestamp, type, severity, symbol, message, meta)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	var metaJSON []byte
	if event.Meta != nil {
		var err error
		metaJSON, err = json.Marshal(event.Meta)
		if err != nil {
			return err
		}
	}

	return r.db.QueryRowContext(ctx, query,
		event.Timestamp,
		event.Type,
		event.Severity,
		event.Symbol,
		event.Message,
		metaJSON,
	).Scan(&event.ID)
}

// EventFilter - фильтр выборки событий
type EventFilter struct {
	Type     string
	Severity string
	Symbol   string
	Since    time.Time
	Limit    int
}

// List возвращает события по фильтру, новые первыми
func (r *EventRepository) List(ctx context.Context, filter EventFilter) ([]models.RiskEvent, error) {
	query := `
		SELECT id, timestamp, type, severity, symbol, message, meta
		FROM risk_events
		WHERE ($1 = '' OR type = $1)
		  AND ($2 = '' OR severity = $2)
		  AND ($3 = '' OR symbol = $3)
		  AND timestamp >= $4
		ORDER BY timestamp DESC
		LIMIT $5`

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, query,
		filter.Type, filter.Severity, filter.Symbol, filter.Since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.RiskEvent
	for rows.Next() {
		var event models.RiskEvent
		var metaJSON []byte
		if err := rows.Scan(
			&event.ID,
			&event.Timestamp,
			&event.Type,
			&event.Severity,
			&event.Symbol,
			&event.Message,
			&metaJSON,
		); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &event.Meta); err != nil {
				return nil, err
			}
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

// CountSince возвращает количество событий типа eventType с момента since
func (r *EventRepository) CountSince(ctx context.Context, eventType string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM risk_events WHERE type = $1 AND timestamp >= $2`

	var count int
	err := r.db.QueryRowContext(ctx, query, eventType, since).Scan(&count)
	return count, err
}

// DeleteOlderThan чистит журнал от событий старше cutoff
func (r *EventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM risk_events WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
