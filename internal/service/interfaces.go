// Package service - бизнес-логика над риск-движком: персистентные
// лимиты, журнал событий, операторские действия.
package service

import (
	"context"
	"time"

	"execgate/internal/models"
	"execgate/internal/repository"
)

// LimitsRepositoryInterface определяет интерфейс репозитория лимитов
type LimitsRepositoryInterface interface {
	Get(ctx context.Context) (*models.RiskLimits, error)
	Update(ctx context.Context, limits *models.RiskLimits) error
}

// EventRepositoryInterface определяет интерфейс репозитория событий
type EventRepositoryInterface interface {
	Create(ctx context.Context, event *models.RiskEvent) error
	List(ctx context.Context, filter repository.EventFilter) ([]models.RiskEvent, error)
	CountSince(ctx context.Context, eventType string, since time.Time) (int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
