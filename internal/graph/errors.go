package graph

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/salonbook/internal/model"
)

// Error はAPIErrorをGraphQLのエラーとして返すためのラッパー。
// messageにはAPIErrorのMessageのみを載せ、分類はextensionsで返す。
type Error struct {
	api *model.APIError
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	return e.api.Message
}

// Extensions はGraphQLレスポンスのerrors[].extensionsに出力される値を返す。
func (e *Error) Extensions() map[string]interface{} {
	return map[string]interface{}{
		"code":     e.api.Code,
		"category": e.api.Category,
		"action":   e.api.Action,
	}
}

// Unwrap は元のAPIErrorを返す。
func (e *Error) Unwrap() error {
	return e.api
}

// toClientError はリゾルバーのエラーをクライアントに返せる形に変換する。
// APIError以外のエラーは詳細をログに記録し、INTERNAL_ERRORに置き換える。
func toClientError(operation string, err error) *Error {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		slog.Error("GraphQLオペレーションで内部エラーが発生しました",
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
		apiErr = model.NewInternalError()
	}
	return &Error{api: apiErr}
}

// panicLogger はリゾルバー内のpanicをslogに記録する。
type panicLogger struct{}

// LogPanic はgraphql-goのlog.Loggerを実装する。
func (panicLogger) LogPanic(ctx context.Context, value interface{}) {
	slog.ErrorContext(ctx, "panic recovered in resolver",
		slog.Any("panic", value),
	)
}
