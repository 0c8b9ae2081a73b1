// Package contact はお問い合わせフォームの受付を提供する。
//
// 受け付けたメッセージはHTMLタグを除去したプレーンテキストとして保存する。
package contact

import (
	"context"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/salonbook/internal/model"
	"github.com/hitoshi/salonbook/internal/repository"
	"github.com/hitoshi/salonbook/internal/validation"
	"github.com/microcosm-cc/bluemonday"
)

// SubmitInput はお問い合わせの入力値。
type SubmitInput struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Message string `json:"message" validate:"required,max=2000"`
}

// Service はお問い合わせ受付のサービス層。
type Service struct {
	repo   repository.ContactRepository
	policy *bluemonday.Policy
	now    func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// StrictPolicyで全てのHTMLタグを除去する。
func NewService(repo repository.ContactRepository) *Service {
	return &Service{
		repo:   repo,
		policy: bluemonday.StrictPolicy(),
		now:    time.Now,
	}
}

// Submit はお問い合わせを検証・無害化して保存する。
// 無害化の結果が空になった項目はValidationFailedとして扱う。
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*model.ContactMessage, error) {
	in = SubmitInput{
		Name:    s.strip(in.Name),
		Email:   strings.ToLower(strings.TrimSpace(in.Email)),
		Message: s.strip(in.Message),
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	msg := &model.ContactMessage{
		ID:        uuid.New().String(),
		Name:      in.Name,
		Email:     in.Email,
		Message:   in.Message,
		CreatedAt: s.now().UTC(),
	}

	if err := s.repo.Create(ctx, msg); err != nil {
		slog.Error("お問い合わせの保存に失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, model.NewStoreUnavailableError()
	}

	slog.Info("お問い合わせを受け付けました",
		slog.String("contact_id", msg.ID),
	)
	return msg, nil
}

// maxStripPasses はエンティティの多重エスケープを剥がす回数の上限。
const maxStripPasses = 8

// strip はHTMLタグを除去し、エスケープされた文字を元に戻す。
// 元に戻した結果に新たなタグが現れなくなるまで除去を繰り返す。
// 上限回数で収まらない入力はエスケープしたまま返す。
func (s *Service) strip(text string) string {
	for i := 0; i < maxStripPasses; i++ {
		next := html.UnescapeString(s.policy.Sanitize(text))
		if next == text {
			return strings.TrimSpace(next)
		}
		text = next
	}
	return strings.TrimSpace(s.policy.Sanitize(text))
}
