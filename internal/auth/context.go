// Package auth はパスワード認証、トークン発行、リクエスト単位の認証情報を提供する。
package auth

import (
	"context"

	"github.com/hitoshi/salonbook/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストに検証済みユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// ContextWithUserID はコンテキストに検証済みユーザーIDを注入する。
// ベアラートークンを検証したミドルウェアとテストから使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext はコンテキストから検証済みユーザーIDを取得する。
// 未設定または空文字の場合はfalseを返す。
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", false
	}
	return userID, true
}

// RequireIdentity はリクエストに紐付く検証済みユーザーIDを返す。
// 未ログインの場合はUnauthenticatedエラーを返す。
// 「誰かがログインしているか」のみを判定し、リソースの所有者チェックは行わない。
func RequireIdentity(ctx context.Context) (string, error) {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return "", model.NewUnauthenticatedError()
	}
	return userID, nil
}
