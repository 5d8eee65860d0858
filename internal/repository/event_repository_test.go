package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"execgate/internal/models"
)

// ============================================================
// EventRepository Tests
// ============================================================

func TestNewEventRepository(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewEventRepository(db)
	if repo == nil {
		t.Fatal("NewEventRepository returned nil")
	}
	if repo.db != db {
		t.Error("db not set correctly")
	}
}

func TestEventRepositoryCreate(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		event       *models.RiskEvent
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError bool
	}{
		{
			name: "success with meta",
			event: &models.RiskEvent{
				Timestamp: now,
				Type:      models.EventTypeBreakerTripped,
				Severity:  models.SeverityError,
				Symbol:    "EURUSD",
				Message:   "breaker сработал",
				Meta:      map[string]interface{}{"trip_count": 1},
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				metaJSON, _ := json.Marshal(map[string]interface{}{"trip_count": 1})
				rows := sqlmock.NewRows([]string{"id"}).AddRow(7)
				mock.ExpectQuery(`INSERT INTO risk_events`).
					WithArgs(now, models.EventTypeBreakerTripped, models.SeverityError, "EURUSD", "breaker сработал", metaJSON).
					WillReturnRows(rows)
			},
			expectError: false,
		},
		{
			name: "success without meta",
			event: &models.RiskEvent{
				Timestamp: now,
				Type:      models.EventTypeDailyReset,
				Severity:  models.SeverityInfo,
				Message:   "дневной сброс",
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id"}).AddRow(8)
				mock.ExpectQuery(`INSERT INTO risk_events`).
					WithArgs(now, models.EventTypeDailyReset, models.SeverityInfo, "", "дневной сброс", []byte(nil)).
					WillReturnRows(rows)
			},
			expectError: false,
		},
		{
			name: "database error",
			event: &models.RiskEvent{
				Timestamp: now,
				Type:      models.EventTypeDriftDetected,
				Severity:  models.SeverityWarn,
				Message:   "дрейф",
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO risk_events`).
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

			repo := NewEventRepository(db)
			err = repo.Create(context.Background(), tt.event)

			if tt.expectError && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.expectError && tt.event.ID == 0 {
				t.Error("event ID not set after insert")
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestEventRepositoryList(t *testing.T) {
	now := time.Now()
	since := now.Add(-time.Hour)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	metaJSON, _ := json.Marshal(map[string]interface{}{"kind": "orphan"})
	rows := sqlmock.NewRows([]string{"id", "timestamp", "type", "severity", "symbol", "message", "meta"}).
		AddRow(2, now, models.EventTypeDriftDetected, models.SeverityWarn, "EURUSD", "orphan position", metaJSON).
		AddRow(1, now.Add(-time.Minute), models.EventTypeSyncComplete, models.SeverityInfo, "", "синхронизация", nil)

	mock.ExpectQuery(`SELECT .+ FROM risk_events`).
		WithArgs(models.EventTypeDriftDetected, "", "", since, 50).
		WillReturnRows(rows)

	repo := NewEventRepository(db)
	events, err := repo.List(context.Background(), EventFilter{
		Type:  models.EventTypeDriftDetected,
		Since: since,
		Limit: 50,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("events count = %d, want 2", len(events))
	}
	if events[0].ID != 2 || events[0].Type != models.EventTypeDriftDetected {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	if events[0].Meta["kind"] != "orphan" {
		t.Errorf("meta not deserialized: %+v", events[0].Meta)
	}
	if events[1].Meta != nil {
		t.Errorf("empty meta should stay nil: %+v", events[1].Meta)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestEventRepositoryListDefaultLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "timestamp", "type", "severity", "symbol", "message", "meta"})
	mock.ExpectQuery(`SELECT .+ FROM risk_events`).
		WithArgs("", "", "", sqlmock.AnyArg(), 100).
		WillReturnRows(rows)

	repo := NewEventRepository(db)
	if _, err := repo.List(context.Background(), EventFilter{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestEventRepositoryCountSince(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	since := time.Now().Add(-24 * time.Hour)
	rows := sqlmock.NewRows([]string{"count"}).AddRow(3)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM risk_events`).
		WithArgs(models.EventTypeBreakerTripped, since).
		WillReturnRows(rows)

	repo := NewEventRepository(db)
	count, err := repo.CountSince(context.Background(), models.EventTypeBreakerTripped, since)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestEventRepositoryDeleteOlderThan(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	cutoff := time.Now().AddDate(0, 0, -30)
	mock.ExpectExec(`DELETE FROM risk_events`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 42))

	repo := NewEventRepository(db)
	deleted, err := repo.DeleteOlderThan(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 42 {
		t.Errorf("deleted = %d, want 42", deleted)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
