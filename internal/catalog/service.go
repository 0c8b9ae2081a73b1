// Package catalog はサロンのメニュー一覧を提供する。
package catalog

import (
	"context"
	"log/slog"

	"github.com/hitoshi/salonbook/internal/model"
	"github.com/hitoshi/salonbook/internal/repository"
)

// Service はメニュー参照のサービス層。
type Service struct {
	repo repository.ServiceRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.ServiceRepository) *Service {
	return &Service{repo: repo}
}

// Services は全メニューを担当者付きで返す。
// データストアの障害は詳細をログに残し、汎用のStoreUnavailableとして返す。
func (s *Service) Services(ctx context.Context) ([]*model.Service, error) {
	services, err := s.repo.List(ctx)
	if err != nil {
		slog.Error("メニュー一覧の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, model.NewStoreUnavailableError()
	}
	if services == nil {
		services = []*model.Service{}
	}
	return services, nil
}
