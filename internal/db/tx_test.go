package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (t *fakeTx) Commit(context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.rolledBack = true
	return nil
}

type fakeBeginner struct {
	txs      []*fakeTx
	beginErr error
}

func (b *fakeBeginner) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	if b.beginErr != nil {
		return nil, b.beginErr
	}
	tx := &fakeTx{}
	b.txs = append(b.txs, tx)
	return tx, nil
}

func TestRunInTxCommits(t *testing.T) {
	beginner := &fakeBeginner{}

	err := RunInTx(context.Background(), beginner, func(pgx.Tx) error { return nil })
	if err != nil {
		t.Fatalf("run in tx: %v", err)
	}
	if len(beginner.txs) != 1 || !beginner.txs[0].committed {
		t.Fatalf("expected a single committed transaction got %+v", beginner.txs)
	}
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	beginner := &fakeBeginner{}
	boom := errors.New("boom")

	err := RunInTx(context.Background(), beginner, func(pgx.Tx) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom got %v", err)
	}
	if len(beginner.txs) != 1 || !beginner.txs[0].rolledBack || beginner.txs[0].committed {
		t.Fatalf("expected rollback without retry got %+v", beginner.txs)
	}
}

func TestRunInTxRetriesSerializationFailures(t *testing.T) {
	beginner := &fakeBeginner{}
	calls := 0

	err := RunInTx(context.Background(), beginner, func(pgx.Tx) error {
		calls++
		if calls == 1 {
			return fmt.Errorf("update: %w", &pgconn.PgError{Code: "40001"})
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run in tx: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected a retry got %d calls", calls)
	}
	if !beginner.txs[1].committed {
		t.Fatal("expected second attempt to commit")
	}
}

func TestRunInTxGivesUp(t *testing.T) {
	beginner := &fakeBeginner{}

	err := RunInTx(context.Background(), beginner, func(pgx.Tx) error {
		return &pgconn.PgError{Code: "40P01"}
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if len(beginner.txs) != txMaxRetries {
		t.Fatalf("expected %d attempts got %d", txMaxRetries, len(beginner.txs))
	}
}

func TestShouldRetry(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"serialization", &pgconn.PgError{Code: "40001"}, true},
		{"uniqueViolation", &pgconn.PgError{Code: "23505"}, false},
		{"txClosed", pgx.ErrTxClosed, true},
		{"other", errors.New("other"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ShouldRetry(tc.err); got != tc.want {
				t.Fatalf("ShouldRetry(%v) = %v want %v", tc.err, got, tc.want)
			}
		})
	}
}
