package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/sanosuguru/go-event-booking/internal/domain/transaction"
)

// pq のエラーコード
const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqLockNotAvailable     = "55P03"
)

// classifyError はドライバエラーをドメインのエラーに変換する
// 競合・タイムアウト由来の失敗は transaction.ErrContention として
// 呼び出し元にリトライ可能であることを伝える
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", transaction.ErrContention, err)
	}
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		switch string(pgErr.Code) {
		case pqSerializationFailure, pqDeadlockDetected, pqLockNotAvailable:
			return fmt.Errorf("%w: %v", transaction.ErrContention, err)
		}
	}
	return err
}

// isUniqueViolation は一意制約違反かを、制約名が一致する場合に限り判定する
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		return string(pgErr.Code) == pqUniqueViolation && pgErr.Constraint == constraint
	}
	return false
}
