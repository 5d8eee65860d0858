package handlers

import (
	"context"
	"time"

	"execgate/internal/models"
	"execgate/internal/repository"
	"execgate/internal/service"
)

// RiskServiceInterface определяет операции риск-сервиса, нужные handlers
type RiskServiceInterface interface {
	GetStatus() service.StatusResponse
	GetLimits() models.RiskLimits
	UpdateLimits(ctx context.Context, req *service.UpdateLimitsRequest) (*models.RiskLimits, error)
	ListEvents(ctx context.Context, filter repository.EventFilter) ([]models.RiskEvent, error)
	CountEventsSince(ctx context.Context, eventType string, since time.Time) (int, error)
	ResetDaily()
	ResetSymbol(symbol string) error
	ActivateKillSwitch(reason string) (bool, error)
	ResetKillSwitch() error
}

// OrderSubmitter определяет путь исполнения торговой команды
type OrderSubmitter interface {
	Submit(ctx context.Context, cmd *models.OrderCommand, price float64) (*models.OrderResult, *models.RiskDecision, error)
}
