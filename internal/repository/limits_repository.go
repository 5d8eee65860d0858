package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"execgate/internal/models"
)

// Ошибки репозитория лимитов
var (
	ErrLimitsNotFound = errors.New("risk limits not found")
)

// LimitsRepository - работа с таблицей risk_limits (всегда одна запись, id=1)
type LimitsRepository struct {
	db *sql.DB
}

// NewLimitsRepository создает новый экземпляр репозитория
func NewLimitsRepository(db *sql.DB) *LimitsRepository {
	return &LimitsRepository{db: db}
}

// Get возвращает действующие лимиты риск-движка.
// Если записи нет, создает ее с дефолтными значениями.
func (r *LimitsRepository) Get(ctx context.Context) (*models.RiskLimits, error) {
	query := `SELECT limits FROM risk_limits WHERE id = 1`

	var limitsJSON []byte
	err := r.db.QueryRowContext(ctx, query).Scan(&limitsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.createDefault(ctx)
		}
		return nil, err
	}

	limits := &models.RiskLimits{}
	if err := json.Unmarshal(limitsJSON, limits); err != nil {
		return nil, err
	}

	return limits, nil
}

// Update сохраняет новые лимиты. Валидация - обязанность вызывающего
// (service проверяет согласованность до записи).
func (r *LimitsRepository) Update(ctx context.Context, limits *models.RiskLimits) error {
	limitsJSON, err := json.Marshal(limits)
	if err != nil {
		return err
	}

	query := `
		UPDATE risk_limits
		SET limits = $1, updated_at = $2
		WHERE id = 1`

	result, err := r.db.ExecContext(ctx, query, limitsJSON, time.Now())
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrLimitsNotFound
	}

	return nil
}

// createDefault записывает дефолтные лимиты
func (r *LimitsRepository) createDefault(ctx context.Context) (*models.RiskLimits, error) {
	limits := models.DefaultRiskLimits()

	limitsJSON, err := json.Marshal(limits)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO risk_limits (id, limits, updated_at)
		VALUES (1, $1, $2)`

	if _, err := r.db.ExecContext(ctx, query, limitsJSON, time.Now()); err != nil {
		return nil, err
	}

	return limits, nil
}
