package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"execgate/internal/models"
)

// ============================================================
// LimitsRepository Tests
// ============================================================

func TestLimitsRepositoryGet(t *testing.T) {
	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		check       func(t *testing.T, limits *models.RiskLimits)
		expectError bool
	}{
		{
			name: "success",
			mockSetup: func(mock sqlmock.Sqlmock) {
				limits := models.DefaultRiskLimits()
				limits.CircuitBreaker.MaxConsecutiveLosses = 5
				limitsJSON, _ := json.Marshal(limits)
				rows := sqlmock.NewRows([]string{"limits"}).AddRow(limitsJSON)
				mock.ExpectQuery(`SELECT limits FROM risk_limits WHERE id = 1`).
					WillReturnRows(rows)
			},
			check: func(t *testing.T, limits *models.RiskLimits) {
				if limits.CircuitBreaker.MaxConsecutiveLosses != 5 {
					t.Errorf("max_consecutive_losses = %d, want 5", limits.CircuitBreaker.MaxConsecutiveLosses)
				}
			},
		},
		{
			name: "not found - creates default",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT limits FROM risk_limits WHERE id = 1`).
					WillReturnError(sql.ErrNoRows)
				mock.ExpectExec(`INSERT INTO risk_limits`).
					WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(1, 1))
			},
			check: func(t *testing.T, limits *models.RiskLimits) {
				def := models.DefaultRiskLimits()
				if limits.CircuitBreaker.MaxConsecutiveLosses != def.CircuitBreaker.MaxConsecutiveLosses {
					t.Errorf("default limits expected, got %+v", limits.CircuitBreaker)
				}
			},
		},
		{
			name: "corrupted json",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"limits"}).AddRow([]byte("{not json"))
				mock.ExpectQuery(`SELECT limits FROM risk_limits WHERE id = 1`).
					WillReturnRows(rows)
			},
			expectError: true,
		},
		{
			name: "database error",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT limits FROM risk_limits WHERE id = 1`).
					WillReturnError(sql.ErrConnDone)
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewLimitsRepository(db)
			limits, err := repo.Get(context.Background())

			if tt.expectError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.check != nil {
				tt.check(t, limits)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestLimitsRepositoryUpdate(t *testing.T) {
	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectedErr error
	}{
		{
			name: "success",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE risk_limits`).
					WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "not found",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE risk_limits`).
					WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			expectedErr: ErrLimitsNotFound,
		},
		{
			name: "database error",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE risk_limits`).
					WillReturnError(sql.ErrConnDone)
			},
			expectedErr: sql.ErrConnDone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewLimitsRepository(db)
			err = repo.Update(context.Background(), models.DefaultRiskLimits())

			if tt.expectedErr != nil {
				if !errors.Is(err, tt.expectedErr) {
					t.Errorf("error = %v, want %v", err, tt.expectedErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}
