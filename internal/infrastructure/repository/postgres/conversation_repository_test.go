package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/notice-extractor/internal/core/domain"
)

func newConversationRepoWithMock(t *testing.T) (*ConversationRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewConversationRepository(db), mock, func() { _ = db.Close() }
}

func TestLoadTurnsReturnsChronologicalWindow(t *testing.T) {
	repo, mock, done := newConversationRepoWithMock(t)
	defer done()

	t1 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	rows := sqlmock.NewRows([]string{"id", "conversation_id", "question", "answer", "created_at"}).
		AddRow("turn-2", "conv-1", "q2", "a2", t2).
		AddRow("turn-1", "conv-1", "q1", "a1", t1)
	mock.ExpectQuery("SELECT id, conversation_id, question, answer, created_at").
		WithArgs("conv-1", 2).
		WillReturnRows(rows)

	turns, err := repo.LoadTurns(context.Background(), "conv-1", 2)
	if err != nil {
		t.Fatalf("LoadTurns() error = %v", err)
	}
	if len(turns) != 2 || turns[0].ID != "turn-1" || turns[1].ID != "turn-2" {
		t.Fatalf("expected chronological turns, got %+v", turns)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLoadTurnsUnknownConversationIsEmpty(t *testing.T) {
	repo, mock, done := newConversationRepoWithMock(t)
	defer done()

	mock.ExpectQuery("FROM conversation_turns").
		WithArgs("unknown").
		WillReturnRows(sqlmock.NewRows([]string{"id", "conversation_id", "question", "answer", "created_at"}))

	turns, err := repo.LoadTurns(context.Background(), "unknown", 0)
	if err != nil {
		t.Fatalf("LoadTurns() error = %v", err)
	}
	if turns == nil || len(turns) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", turns)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLoadTurnsWrapsStoreFailure(t *testing.T) {
	repo, mock, done := newConversationRepoWithMock(t)
	defer done()

	mock.ExpectQuery("FROM conversation_turns").
		WithArgs("conv-1", 10).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.LoadTurns(context.Background(), "conv-1", 10)
	if !domain.IsKind(err, domain.ErrConversationStore) {
		t.Fatalf("expected conversation store error, got %v", err)
	}
}

func TestAppendTurnInsertsSingleRow(t *testing.T) {
	repo, mock, done := newConversationRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO conversation_turns").
		WithArgs("turn-1", "conv-1", "q", `{"q":"a"}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.AppendTurn(context.Background(), domain.ConversationTurn{
		ID:             "turn-1",
		ConversationID: "conv-1",
		Question:       "q",
		Answer:         `{"q":"a"}`,
	})
	if err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAppendTurnWrapsStoreFailure(t *testing.T) {
	repo, mock, done := newConversationRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO conversation_turns").
		WillReturnError(errors.New("disk full"))

	err := repo.AppendTurn(context.Background(), domain.ConversationTurn{ID: "turn-1", ConversationID: "conv-1"})
	if !domain.IsKind(err, domain.ErrConversationStore) {
		t.Fatalf("expected conversation store error, got %v", err)
	}
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(schemaLockID).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS conversation_turns").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
