package transaction

import (
	"context"
	"errors"
)

// ErrContention はロック競合やタイムアウトにより
// アトミックな処理単位を完了できなかったことを表す
// このエラーはバックオフ付きのリトライが安全
var ErrContention = errors.New("競合のため処理を完了できませんでした")

// Tx はトランザクションを表すインターフェース
// ドメイン層がインフラ層（sqlx等）に依存しないようにするための抽象化
type Tx interface {
	// Commit はトランザクションをコミットする
	Commit() error
	// Rollback はトランザクションをロールバックする
	Rollback() error
}

// Manager はトランザクションを管理するインターフェース
type Manager interface {
	// Begin は新しいトランザクションを開始する
	Begin(ctx context.Context) (Tx, error)
}
