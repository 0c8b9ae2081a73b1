// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/salonbook/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
// 戻り値のUser.Servicesは埋めない。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail は正規化済み（小文字・前後空白なし）のメールアドレスでユーザーを検索する。
	// 保存側のメールアドレスは大文字小文字を区別せずに比較する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// メールアドレスが登録済みの場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// List は全ユーザーを登録順に返す。
	List(ctx context.Context) ([]*model.User, error)
}

// ServiceRepository はメニューデータの読み取りインターフェース。
type ServiceRepository interface {
	// List は全メニューを料金オプションと担当者付きで返す。
	List(ctx context.Context) ([]*model.Service, error)

	// ListByUserIDs は指定ユーザーに紐付くメニューをユーザーIDごとに返す。
	// 紐付けのないユーザーはマップに含まれない。
	ListByUserIDs(ctx context.Context, userIDs []string) (map[string][]*model.Service, error)
}

// ContactRepository はお問い合わせメッセージの永続化インターフェース。
type ContactRepository interface {
	// Create はお問い合わせメッセージを保存する。
	Create(ctx context.Context, msg *model.ContactMessage) error

	// DeleteOlderThan はcutoffより前に受け付けたメッセージを削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
