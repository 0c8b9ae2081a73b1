package repository

import (
	"context"

	"github.com/hitoshi/salonbook/internal/model"
)

// ServiceCache はメニュー一覧のキャッシュインターフェース。
// キャッシュ障害は呼び出し側に伝えず、ミスとして扱う。
type ServiceCache interface {
	GetServices(ctx context.Context) ([]*model.Service, bool)
	SetServices(ctx context.Context, services []*model.Service)
}

// CachedServiceRepo はList結果をキャッシュするServiceRepositoryのデコレータ。
// ユーザーごとの紐付け（ListByUserIDs）はキャッシュしない。
type CachedServiceRepo struct {
	next  ServiceRepository
	cache ServiceCache
}

// NewCachedServiceRepo はCachedServiceRepoを生成する。
func NewCachedServiceRepo(next ServiceRepository, cache ServiceCache) *CachedServiceRepo {
	return &CachedServiceRepo{next: next, cache: cache}
}

// List はキャッシュがあればそれを返し、なければ下位リポジトリから取得してキャッシュする。
func (r *CachedServiceRepo) List(ctx context.Context) ([]*model.Service, error) {
	if services, ok := r.cache.GetServices(ctx); ok {
		return services, nil
	}

	services, err := r.next.List(ctx)
	if err != nil {
		return nil, err
	}

	r.cache.SetServices(ctx, services)
	return services, nil
}

// ListByUserIDs は下位リポジトリへそのまま委譲する。
func (r *CachedServiceRepo) ListByUserIDs(ctx context.Context, userIDs []string) (map[string][]*model.Service, error) {
	return r.next.ListByUserIDs(ctx, userIDs)
}

// compile-time interface check
var _ ServiceRepository = (*CachedServiceRepo)(nil)
