// Package account はユーザーアカウントの参照・登録・ログインのドメインロジックを提供する。
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/salonbook/internal/auth"
	"github.com/hitoshi/salonbook/internal/model"
	"github.com/hitoshi/salonbook/internal/repository"
	"github.com/hitoshi/salonbook/internal/validation"
)

// PasswordHasher はパスワードのハッシュ化と照合のインターフェース。
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	VerifyPassword(user *model.User, password string) bool
}

// TokenIssuer はベアラートークン発行のインターフェース。
type TokenIssuer interface {
	Issue(user *model.User) (string, error)
}

// maxPasswordBytes はbcryptが受け付けるパスワードの最大バイト数。
const maxPasswordBytes = 72

// CreateUserInput は新規ユーザー登録の入力値。
type CreateUserInput struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Phone     string `json:"phone" validate:"omitempty,max=30"`
	Birthdate string `json:"birthdate" validate:"omitempty,datetime=2006-01-02"`
}

// Service はアカウント操作のサービス層。
// リポジトリのエラーをAPIErrorの分類に変換する。
type Service struct {
	userRepo    repository.UserRepository
	serviceRepo repository.ServiceRepository
	passwords   PasswordHasher
	tokens      TokenIssuer
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	serviceRepo repository.ServiceRepository,
	passwords PasswordHasher,
	tokens TokenIssuer,
) *Service {
	return &Service{
		userRepo:    userRepo,
		serviceRepo: serviceRepo,
		passwords:   passwords,
		tokens:      tokens,
		now:         time.Now,
	}
}

// Users は全ユーザーを紐付くメニュー付きで返す。
func (s *Service) Users(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, storeUnavailable("ユーザー一覧の取得に失敗しました", err)
	}
	if err := s.attachServices(ctx, users); err != nil {
		return nil, err
	}
	return users, nil
}

// UserByEmail はメールアドレスでユーザーを検索する。
// 見つからない場合はエラーではなくnilを返す。
func (s *Service) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, storeUnavailable("ユーザーの取得に失敗しました", err)
	}
	if user == nil {
		return nil, nil
	}
	if err := s.attachServices(ctx, []*model.User{user}); err != nil {
		return nil, err
	}
	return user, nil
}

// Me はリクエストしたユーザー自身のレコードを返す。
// 未ログイン、またはトークン発行後にユーザーが削除されている場合はUnauthenticatedを返す。
func (s *Service) Me(ctx context.Context) (*model.User, error) {
	userID, err := auth.RequireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, storeUnavailable("ログインユーザーの取得に失敗しました", err)
	}
	if user == nil {
		slog.Warn("トークンのユーザーが存在しません",
			slog.String("user_id", userID),
		)
		return nil, model.NewUnauthenticatedError()
	}

	if err := s.attachServices(ctx, []*model.User{user}); err != nil {
		return nil, err
	}
	return user, nil
}

// Login はメールアドレスとパスワードを照合し、トークンを発行する。
// ユーザー未登録とパスワード不一致はどちらもInvalidCredentialsを返す。
// データストア障害はStoreUnavailableとして区別して返す。
func (s *Service) Login(ctx context.Context, email, password string) (*model.AuthPayload, error) {
	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, storeUnavailable("ログイン時のユーザー取得に失敗しました", err)
	}

	// userがnilでも照合処理は行われる
	if !s.passwords.VerifyPassword(user, password) {
		slog.Info("ログインに失敗しました")
		return nil, model.NewInvalidCredentialsError()
	}

	return s.issue(ctx, user)
}

// CreateUser は新規ユーザーを登録し、トークンを発行する。
// 入力不正と登録済みメールアドレスはValidationFailedを返す。
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*model.AuthPayload, error) {
	in.Email = normalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Birthdate = strings.TrimSpace(in.Birthdate)

	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	// validatorのmaxは文字数で数えるため、bcryptの上限はバイト数で別に確認する
	if len(in.Password) > maxPasswordBytes {
		return nil, model.NewValidationFailedError(fmt.Sprintf("passwordは%dバイト以内で入力してください", maxPasswordBytes))
	}

	hash, err := s.passwords.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	now := s.now().UTC()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
		CreatedAt:    now,
		UpdatedAt:    now,
		Services:     []*model.Service{},
	}
	if in.Birthdate != "" {
		birthdate, err := time.Parse(time.DateOnly, in.Birthdate)
		if err != nil {
			return nil, model.NewValidationFailedError("birthdateはYYYY-MM-DD形式で入力してください")
		}
		user.Birthdate = &birthdate
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewDuplicateEmailError()
		}
		return nil, storeUnavailable("ユーザーの登録に失敗しました", err)
	}

	slog.Info("ユーザーを登録しました",
		slog.String("user_id", user.ID),
	)

	return s.issue(ctx, user)
}

// issue はユーザーのトークンを発行し、紐付くメニューを埋めたペイロードを返す。
func (s *Service) issue(ctx context.Context, user *model.User) (*model.AuthPayload, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("トークンの発行に失敗しました: %w", err)
	}

	if user.Services == nil {
		if err := s.attachServices(ctx, []*model.User{user}); err != nil {
			return nil, err
		}
	}

	return &model.AuthPayload{Token: token, User: user}, nil
}

// attachServices はユーザーに紐付くメニューを1回のクエリでまとめて設定する。
func (s *Service) attachServices(ctx context.Context, users []*model.User) error {
	if len(users) == 0 {
		return nil
	}

	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}

	byUser, err := s.serviceRepo.ListByUserIDs(ctx, ids)
	if err != nil {
		return storeUnavailable("ユーザーのメニュー取得に失敗しました", err)
	}

	for _, u := range users {
		services := byUser[u.ID]
		if services == nil {
			services = []*model.Service{}
		}
		u.Services = services
	}
	return nil
}

// storeUnavailable は障害の詳細をログに記録し、利用者向けの汎用エラーを返す。
func storeUnavailable(msg string, err error) error {
	slog.Error(msg,
		slog.String("error", err.Error()),
	)
	return model.NewStoreUnavailableError()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
