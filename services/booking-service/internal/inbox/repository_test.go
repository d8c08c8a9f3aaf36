package inbox

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestRecord(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := NewRepository(mock)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO inbox_events").
		WithArgs("evt-1", "merchant.schedule.updated.v1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO inbox_events").
		WithArgs("evt-1", "merchant.schedule.updated.v1").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectExec("INSERT INTO inbox_events").
		WithArgs("evt-2", "merchant.schedule.updated.v1").
		WillReturnError(errors.New("connection reset"))

	if ok, err := repo.Record(ctx, "evt-1", "merchant.schedule.updated.v1"); !ok || err != nil {
		t.Fatalf("first record = %v, %v", ok, err)
	}
	if ok, err := repo.Record(ctx, "evt-1", "merchant.schedule.updated.v1"); ok || err != nil {
		t.Fatalf("duplicate record = %v, %v", ok, err)
	}
	if _, err := repo.Record(ctx, "evt-2", "merchant.schedule.updated.v1"); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestForget(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := NewRepository(mock)

	mock.ExpectExec("DELETE FROM inbox_events").
		WithArgs("evt-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM inbox_events").
		WithArgs("evt-2").
		WillReturnError(errors.New("connection reset"))

	if err := repo.Forget(context.Background(), "evt-1"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if err := repo.Forget(context.Background(), "evt-2"); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
