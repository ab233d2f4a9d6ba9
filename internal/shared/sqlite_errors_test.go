package shared

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestIsSQLiteConflictError(t *testing.T) {
	if !IsSQLiteConflictError(errors.New("exec: SQLITE_BUSY (5)")) {
		t.Fatal("expected busy error to be a conflict")
	}
	if !IsSQLiteConflictError(errors.New("database is locked")) {
		t.Fatal("expected locked error to be a conflict")
	}
	if IsSQLiteConflictError(errors.New("no such table")) || IsSQLiteConflictError(nil) {
		t.Fatal("unexpected conflict classification")
	}
}

func TestRetryOnConflict_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := RetryOnConflict(context.Background(), "test", RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond}, func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryOnConflict_StopsOnOtherErrors(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := RetryOnConflict(context.Background(), "test", RetryPolicy{Attempts: 5, BaseDelay: time.Millisecond}, func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("expected single call returning boom, got %d calls, err=%v", calls, err)
	}
}

func TestRetryOnConflict_GivesUpAfterAttempts(t *testing.T) {
	calls := 0
	err := RetryOnConflict(context.Background(), "test", RetryPolicy{Attempts: 2, BaseDelay: time.Millisecond}, func() error {
		calls++
		return errors.New("SQLITE_BUSY")
	})
	if err == nil || calls != 2 {
		t.Fatalf("expected failure after 2 calls, got %d calls, err=%v", calls, err)
	}
}
