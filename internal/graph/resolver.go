// Package graph はGraphQLスキーマとリゾルバーを提供する。
//
// 各オペレーションはドメインサービスに委譲し、認可判定はauth.RequireIdentityに一本化する。
// リゾルバーは共有の可変状態を持たない。
package graph

import (
	"context"
	"time"

	"github.com/hitoshi/salonbook/internal/account"
	"github.com/hitoshi/salonbook/internal/contact"
	"github.com/hitoshi/salonbook/internal/metrics"
	"github.com/hitoshi/salonbook/internal/model"
)

// AccountService はアカウント操作のインターフェース。
// account.Serviceが実装する。
type AccountService interface {
	Users(ctx context.Context) ([]*model.User, error)
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	Me(ctx context.Context) (*model.User, error)
	Login(ctx context.Context, email, password string) (*model.AuthPayload, error)
	CreateUser(ctx context.Context, in account.CreateUserInput) (*model.AuthPayload, error)
}

// CatalogService はメニュー参照のインターフェース。
type CatalogService interface {
	Services(ctx context.Context) ([]*model.Service, error)
}

// ContactService はお問い合わせ受付のインターフェース。
type ContactService interface {
	Submit(ctx context.Context, in contact.SubmitInput) (*model.ContactMessage, error)
}

// AttemptLimiter は認証系操作のレート制限インターフェース。
// middleware.RateLimiterが実装する。
type AttemptLimiter interface {
	AllowAuthAttempt(ctx context.Context) bool
}

// Resolver はQueryとMutationのルートリゾルバー。
type Resolver struct {
	accounts AccountService
	catalog  CatalogService
	contacts ContactService
	limiter  AttemptLimiter
	metrics  metrics.MetricsCollector
}

// NewResolver はResolverを生成する。
// limiterがnilの場合、認証系操作のレート制限は行わない。
func NewResolver(
	accounts AccountService,
	catalog CatalogService,
	contacts ContactService,
	limiter AttemptLimiter,
	collector metrics.MetricsCollector,
) *Resolver {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Resolver{
		accounts: accounts,
		catalog:  catalog,
		contacts: contacts,
		limiter:  limiter,
		metrics:  collector,
	}
}

// --- Query ---

// Users は全ユーザーを返す。
func (r *Resolver) Users(ctx context.Context) ([]*userResolver, error) {
	start := time.Now()
	users, err := r.accounts.Users(ctx)
	if err := r.finish("users", start, err); err != nil {
		return nil, err
	}
	return newUserResolvers(users), nil
}

// User はメールアドレスでユーザーを返す。見つからない場合はnull。
func (r *Resolver) User(ctx context.Context, args struct{ Email string }) (*userResolver, error) {
	start := time.Now()
	user, err := r.accounts.UserByEmail(ctx, args.Email)
	if err := r.finish("user", start, err); err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	return &userResolver{u: user}, nil
}

// Me はログイン中のユーザー自身を返す。
func (r *Resolver) Me(ctx context.Context) (*userResolver, error) {
	start := time.Now()
	user, err := r.accounts.Me(ctx)
	if err := r.finish("me", start, err); err != nil {
		return nil, err
	}
	return &userResolver{u: user}, nil
}

// Services は全メニューを返す。
func (r *Resolver) Services(ctx context.Context) ([]*serviceResolver, error) {
	start := time.Now()
	services, err := r.catalog.Services(ctx)
	if err := r.finish("services", start, err); err != nil {
		return nil, err
	}
	return newServiceResolvers(services), nil
}

// --- Mutation ---

type loginArgs struct {
	Email    string
	Password string
}

// Login はログインしてトークンを発行する。
func (r *Resolver) Login(ctx context.Context, args loginArgs) (*authResolver, error) {
	start := time.Now()
	if !r.allowAttempt(ctx) {
		r.metrics.RecordLoginFailure("rate_limited")
		return nil, r.finish("login", start, model.NewRateLimitedError())
	}

	payload, err := r.accounts.Login(ctx, args.Email, args.Password)
	if model.IsCode(err, model.ErrCodeInvalidCredentials) {
		r.metrics.RecordLoginFailure("invalid_credentials")
	}
	if err := r.finish("login", start, err); err != nil {
		return nil, err
	}
	return &authResolver{a: payload}, nil
}

type createUserArgs struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     *string
	Birthdate *string
}

// CreateUser は新規ユーザーを登録してトークンを発行する。
func (r *Resolver) CreateUser(ctx context.Context, args createUserArgs) (*authResolver, error) {
	start := time.Now()
	if !r.allowAttempt(ctx) {
		return nil, r.finish("createUser", start, model.NewRateLimitedError())
	}

	payload, err := r.accounts.CreateUser(ctx, account.CreateUserInput{
		Email:     args.Email,
		Password:  args.Password,
		FirstName: args.FirstName,
		LastName:  args.LastName,
		Phone:     deref(args.Phone),
		Birthdate: deref(args.Birthdate),
	})
	if err := r.finish("createUser", start, err); err != nil {
		return nil, err
	}
	return &authResolver{a: payload}, nil
}

type submitContactArgs struct {
	Name    string
	Email   string
	Message string
}

// SubmitContact はお問い合わせを受け付ける。
func (r *Resolver) SubmitContact(ctx context.Context, args submitContactArgs) (*contactReceiptResolver, error) {
	start := time.Now()
	if !r.allowAttempt(ctx) {
		return nil, r.finish("submitContact", start, model.NewRateLimitedError())
	}

	msg, err := r.contacts.Submit(ctx, contact.SubmitInput{
		Name:    args.Name,
		Email:   args.Email,
		Message: args.Message,
	})
	if err := r.finish("submitContact", start, err); err != nil {
		return nil, err
	}
	return &contactReceiptResolver{m: msg}, nil
}

func (r *Resolver) allowAttempt(ctx context.Context) bool {
	return r.limiter == nil || r.limiter.AllowAuthAttempt(ctx)
}

// finish はオペレーションの結果をメトリクスに記録し、クライアント向けのエラーを返す。
func (r *Resolver) finish(operation string, start time.Time, err error) error {
	if err == nil {
		r.metrics.RecordOperation(operation, metrics.OutcomeOK, time.Since(start))
		return nil
	}

	clientErr := toClientError(operation, err)
	r.metrics.RecordOperation(operation, clientErr.api.Code, time.Since(start))
	return clientErr
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
