package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"execgate/internal/models"
)

// Ошибки репозитория тикетов
var (
	ErrTicketNotFound = errors.New("ticket not found")
)

// TicketRepository - работа с таблицей tickets (журнал исполненных ордеров).
// Реализует engine.TicketJournal.
type TicketRepository struct {
	db *sql.DB
}

// NewTicketRepository создает новый экземпляр репозитория
func NewTicketRepository(db *sql.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// SaveTicket записывает исполненный ордер в журнал.
// Повторная запись того же req_id не ошибка: роутер может отдать
// закэшированный результат, конфликт просто игнорируется.
func (r *TicketRepository) SaveTicket(ctx context.Context, rec *models.TicketRecord) error {
	query := `
		INSERT INTO tickets (request_id, ticket, symbol, type, volume, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (request_id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		rec.RequestID,
		rec.Ticket,
		rec.Symbol,
		rec.Type,
		rec.Volume,
		rec.ExecutedAt,
	)
	return err
}

// GetByRequestID возвращает запись журнала по идентификатору команды
func (r *TicketRepository) GetByRequestID(ctx context.Context, requestID string) (*models.TicketRecord, error) {
	query := `
		SELECT request_id, ticket, symbol, type, volume, executed_at
		FROM tickets
		WHERE request_id = $1`

	rec := &models.TicketRecord{}
	err := r.db.QueryRowContext(ctx, query, requestID).Scan(
		&rec.RequestID,
		&rec.Ticket,
		&rec.Symbol,
		&rec.Type,
		&rec.Volume,
		&rec.ExecutedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}

	return rec, nil
}

// ListSince возвращает тикеты, исполненные с момента since, новые первыми
func (r *TicketRepository) ListSince(ctx context.Context, since time.Time, limit int) ([]models.TicketRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `
		SELECT request_id, ticket, symbol, type, volume, executed_at
		FROM tickets
		WHERE executed_at >= $1
		ORDER BY executed_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.TicketRecord
	for rows.Next() {
		var rec models.TicketRecord
		if err := rows.Scan(
			&rec.RequestID,
			&rec.Ticket,
			&rec.Symbol,
			&rec.Type,
			&rec.Volume,
			&rec.ExecutedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
