package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
)

// fakeTx records commit/rollback calls; the embedded interface covers
// the methods these tests never touch.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return t.commitErr
}

func (t *fakeTx) Rollback(context.Context) error {
	t.rolledBack = true
	return nil
}

type fakeBeginner struct {
	tx       *fakeTx
	beginErr error
}

func (b *fakeBeginner) Begin(context.Context) (pgx.Tx, error) {
	if b.beginErr != nil {
		return nil, b.beginErr
	}
	return b.tx, nil
}

func TestRunInTxCommitsOnSuccess(t *testing.T) {
	tx := &fakeTx{}
	err := runInTx(context.Background(), &fakeBeginner{tx: tx}, func(pgx.Tx) error {
		return nil
	})
	if err != nil {
		t.Fatalf("runInTx: %v", err)
	}
	if !tx.committed || tx.rolledBack {
		t.Fatalf("committed=%v rolledBack=%v", tx.committed, tx.rolledBack)
	}
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	tx := &fakeTx{}
	boom := errors.New("boom")
	err := runInTx(context.Background(), &fakeBeginner{tx: tx}, func(pgx.Tx) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if tx.committed || !tx.rolledBack {
		t.Fatalf("committed=%v rolledBack=%v", tx.committed, tx.rolledBack)
	}
}

func TestRunInTxRollsBackOnPanic(t *testing.T) {
	tx := &fakeTx{}
	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("panic must propagate")
			}
		}()
		_ = runInTx(context.Background(), &fakeBeginner{tx: tx}, func(pgx.Tx) error {
			panic("midway")
		})
	}()
	if tx.committed || !tx.rolledBack {
		t.Fatalf("committed=%v rolledBack=%v", tx.committed, tx.rolledBack)
	}
}

func TestRunInTxSurfacesBeginAndCommitErrors(t *testing.T) {
	beginErr := errors.New("no connection")
	if err := runInTx(context.Background(), &fakeBeginner{beginErr: beginErr}, func(pgx.Tx) error {
		return nil
	}); !errors.Is(err, beginErr) {
		t.Fatalf("begin err = %v", err)
	}

	tx := &fakeTx{commitErr: errors.New("commit refused")}
	err := runInTx(context.Background(), &fakeBeginner{tx: tx}, func(pgx.Tx) error {
		return nil
	})
	if !errors.Is(err, tx.commitErr) {
		t.Fatalf("commit err = %v", err)
	}
}
