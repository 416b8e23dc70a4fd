package postgres_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"gift-notify/internal/domain/entity"
	"gift-notify/internal/infra/adapter/persistence/postgres"
	"gift-notify/internal/observability/metrics"
)

func attemptRow(a *entity.DeliveryAttempt) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "request_id", "event_type", "recipient", "channel", "step",
		"external_id", "provider_status", "error_code", "error_message", "success", "created_at",
	}).AddRow(
		a.ID, a.RequestID, a.EventType, a.Recipient, string(a.Channel), a.Step,
		a.ExternalID, a.ProviderStatus, string(a.ErrorCode), a.ErrorMessage, a.Success, a.CreatedAt,
	)
}

func TestDeliveryAttemptRepo_Create(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := &entity.DeliveryAttempt{
		ID: "a1", RequestID: "req-1", EventType: "contact_added", Recipient: "+5215512345678",
		Channel: entity.ChannelWhatsApp, Step: "whatsapp_template",
		ErrorCode: entity.ErrCodeProvider, ErrorMessage: "template not approved", CreatedAt: now,
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO delivery_attempts`)).
		WithArgs("a1", "req-1", "contact_added", "+5215512345678", "whatsapp", "whatsapp_template",
			"", "", "PROVIDER_ERROR", "template not approved", false, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := postgres.NewDeliveryAttemptRepo(db)
	if err := repo.Create(context.Background(), a); err != nil {
		t.Fatalf("Create err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeliveryAttemptRepo_Create_Error(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`INSERT INTO delivery_attempts`).WillReturnError(errors.New("connection reset"))

	repo := postgres.NewDeliveryAttemptRepo(db)
	err := repo.Create(context.Background(), &entity.DeliveryAttempt{ID: "a1"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestDeliveryAttemptRepo_ListByRequest(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	want := &entity.DeliveryAttempt{
		ID: "a2", RequestID: "req-1", EventType: "contact_added", Recipient: "+5215512345678",
		Channel: entity.ChannelSMS, Step: "sms", ExternalID: "SM123", ProviderStatus: "queued",
		Success: true, CreatedAt: now,
	}

	mock.ExpectQuery(regexp.QuoteMeta(`FROM delivery_attempts`)).
		WithArgs("req-1").
		WillReturnRows(attemptRow(want))

	repo := postgres.NewDeliveryAttemptRepo(db)
	got, err := repo.ListByRequest(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("ListByRequest err=%v", err)
	}
	if diff := cmp.Diff([]*entity.DeliveryAttempt{want}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeliveryAttemptRepo_RecordsQueryDuration(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM delivery_attempts`)).
		WithArgs("req-metrics").
		WillReturnError(errors.New("connection reset"))

	repo := postgres.NewDeliveryAttemptRepo(db)
	if _, err := repo.ListByRequest(context.Background(), "req-metrics"); err == nil {
		t.Fatal("expected error")
	}
	if n := testutil.CollectAndCount(metrics.DBQueryDuration, "db_query_duration_seconds"); n == 0 {
		t.Fatal("no db_query_duration_seconds series recorded")
	}
}
