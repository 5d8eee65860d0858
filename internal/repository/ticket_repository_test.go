package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"execgate/internal/models"
)

// ============================================================
// TicketRepository Tests
// ============================================================

func TestTicketRepositorySaveTicket(t *testing.T) {
	now := time.Now().UTC()
	rec := &models.TicketRecord{
		RequestID:  "req-123",
		Ticket:     100045,
		Symbol:     "EURUSD",
		Type:       models.OrderTypeBuy,
		Volume:     0.1,
		ExecutedAt: now,
	}

	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError bool
	}{
		{
			name: "success",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO tickets`).
					WithArgs("req-123", 100045, "EURUSD", models.OrderTypeBuy, 0.1, now).
					WillReturnResult(sqlmock.NewResult(1, 1))
			},
		},
		{
			name: "duplicate req_id ignored",
			mockSetup: func(mock sqlmock.Sqlmock) {
				// ON CONFLICT DO NOTHING: ноль затронутых строк - не ошибка
				mock.ExpectExec(`INSERT INTO tickets`).
					WithArgs("req-123", 100045, "EURUSD", models.OrderTypeBuy, 0.1, now).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
		},
		{
			name: "database error",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO tickets`).
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

			repo := NewTicketRepository(db)
			err = repo.SaveTicket(context.Background(), rec)

			if tt.expectError && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestTicketRepositoryGetByRequestID(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectedErr error
	}{
		{
			name: "success",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"request_id", "ticket", "symbol", "type", "volume", "executed_at"}).
					AddRow("req-123", 100045, "EURUSD", models.OrderTypeBuy, 0.1, now)
				mock.ExpectQuery(`SELECT .+ FROM tickets WHERE request_id = \$1`).
					WithArgs("req-123").
					WillReturnRows(rows)
			},
		},
		{
			name: "not found",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM tickets WHERE request_id = \$1`).
					WithArgs("req-123").
					WillReturnError(sql.ErrNoRows)
			},
			expectedErr: ErrTicketNotFound,
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

			repo := NewTicketRepository(db)
			rec, err := repo.GetByRequestID(context.Background(), "req-123")

			if tt.expectedErr != nil {
				if !errors.Is(err, tt.expectedErr) {
					t.Errorf("error = %v, want %v", err, tt.expectedErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Ticket != 100045 || rec.Symbol != "EURUSD" {
				t.Errorf("unexpected record: %+v", rec)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestTicketRepositoryListSince(t *testing.T) {
	now := time.Now().UTC()
	since := now.Add(-time.Hour)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"request_id", "ticket", "symbol", "type", "volume", "executed_at"}).
		AddRow("req-2", 100046, "GBPUSD", models.OrderTypeSell, 0.2, now).
		AddRow("req-1", 100045, "EURUSD", models.OrderTypeBuy, 0.1, now.Add(-time.Minute))

	mock.ExpectQuery(`SELECT .+ FROM tickets`).
		WithArgs(since, 100).
		WillReturnRows(rows)

	repo := NewTicketRepository(db)
	records, err := repo.ListSince(context.Background(), since, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records count = %d, want 2", len(records))
	}
	if records[0].RequestID != "req-2" {
		t.Errorf("unexpected order: %+v", records)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
