package account

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/salonbook/internal/auth"
	"github.com/hitoshi/salonbook/internal/model"
	"github.com/hitoshi/salonbook/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// --- フェイク ---

// memUserRepo はメモリ上でユーザーを保持するUserRepositoryのフェイク。
type memUserRepo struct {
	mu    sync.Mutex
	users []*model.User
	err   error

	// emailQueries はFindByEmailに渡された値
	emailQueries []string
}

func (r *memUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emailQueries = append(r.emailQueries, email)
	// PostgresUserRepoと同じく、引数は正規化済みとして完全一致で比較する
	for _, u := range r.users {
		if strings.ToLower(u.Email) == email {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) Create(ctx context.Context, user *model.User) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicateEmail
		}
	}
	c := *user
	c.Services = nil
	r.users = append(r.users, &c)
	return nil
}

func (r *memUserRepo) List(ctx context.Context) ([]*model.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.User, 0, len(r.users))
	for _, u := range r.users {
		c := *u
		out = append(out, &c)
	}
	return out, nil
}

type mockServiceRepo struct {
	listByUserIDsFn func(ctx context.Context, userIDs []string) (map[string][]*model.Service, error)
}

func (m *mockServiceRepo) List(ctx context.Context) ([]*model.Service, error) {
	return []*model.Service{}, nil
}

func (m *mockServiceRepo) ListByUserIDs(ctx context.Context, userIDs []string) (map[string][]*model.Service, error) {
	if m.listByUserIDsFn != nil {
		return m.listByUserIDsFn(ctx, userIDs)
	}
	return map[string][]*model.Service{}, nil
}

var (
	_ repository.UserRepository    = (*memUserRepo)(nil)
	_ repository.ServiceRepository = (*mockServiceRepo)(nil)
)

// --- ヘルパー ---

const testPassword = "correct-horse"

type fixture struct {
	svc      *Service
	users    *memUserRepo
	services *mockServiceRepo
	tokens   *auth.TokenIssuer
	stored   *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	authn, err := auth.NewAuthenticator(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewAuthenticator() error = %v", err)
	}
	hash, err := authn.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	stored := &model.User{
		ID:           "11111111-1111-1111-1111-111111111111",
		Email:        "a@x.com",
		PasswordHash: hash,
		FirstName:    "Ann",
		LastName:     "Lee",
	}
	other := &model.User{
		ID:           "22222222-2222-2222-2222-222222222222",
		Email:        "b@x.com",
		PasswordHash: hash,
		FirstName:    "Bob",
		LastName:     "Kim",
	}

	users := &memUserRepo{users: []*model.User{stored, other}}
	services := &mockServiceRepo{}
	tokens := auth.NewTokenIssuer("test-jwt-secret-0123456789abcdef0123", 2*time.Hour)

	return &fixture{
		svc:      NewService(users, services, authn, tokens),
		users:    users,
		services: services,
		tokens:   tokens,
		stored:   stored,
	}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError with code %s, got %T (%v)", code, err, err)
	}
	if apiErr.Code != code {
		t.Errorf("Code = %q, want %q", apiErr.Code, code)
	}
}

// --- Login ---

// TestLogin_RoundTrip はログインで得たトークンからmeが同じユーザーを返すことを検証する。
func TestLogin_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	payload, err := f.svc.Login(ctx, "a@x.com", testPassword)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if payload.Token == "" {
		t.Fatal("expected token")
	}
	if payload.User.Email != "a@x.com" {
		t.Errorf("User.Email = %q, want %q", payload.User.Email, "a@x.com")
	}

	claims, err := f.tokens.Verify(payload.Token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.UserID != f.stored.ID {
		t.Errorf("claims.UserID = %q, want %q", claims.UserID, f.stored.ID)
	}

	me, err := f.svc.Me(auth.ContextWithUserID(ctx, claims.UserID))
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}
	if me.ID != f.stored.ID {
		t.Errorf("Me().ID = %q, want %q", me.ID, f.stored.ID)
	}
}

func TestLogin_EmailIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Login(context.Background(), "  A@X.COM ", testPassword); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
}

// TestLogin_WrongPasswordAndUnknownEmail_SameError は未登録と不一致が区別できないことを検証する。
func TestLogin_WrongPasswordAndUnknownEmail_SameError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	payload1, errWrong := f.svc.Login(ctx, "a@x.com", "wrong-password")
	payload2, errUnknown := f.svc.Login(ctx, "nobody@x.com", testPassword)

	if payload1 != nil || payload2 != nil {
		t.Fatal("failed login must not return a payload")
	}
	assertCode(t, errWrong, model.ErrCodeInvalidCredentials)
	assertCode(t, errUnknown, model.ErrCodeInvalidCredentials)
	if errWrong.Error() != errUnknown.Error() {
		t.Errorf("messages differ: %q vs %q", errWrong.Error(), errUnknown.Error())
	}
}

// TestLogin_StoreFailure_IsStoreUnavailable は障害時にInvalidCredentialsと区別されることを検証する。
func TestLogin_StoreFailure_IsStoreUnavailable(t *testing.T) {
	f := newFixture(t)
	f.users.err = errors.New("connection refused: 10.0.0.5:5432")

	_, err := f.svc.Login(context.Background(), "a@x.com", testPassword)
	assertCode(t, err, model.ErrCodeStoreUnavailable)
	if strings.Contains(err.Error(), "10.0.0.5") {
		t.Errorf("error leaks internal detail: %q", err.Error())
	}
}

// --- Me ---

func TestMe_EmptyContext_Unauthenticated(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Me(context.Background())
	assertCode(t, err, model.ErrCodeUnauthenticated)
}

// meは他のユーザーではなくコンテキストのユーザー自身を返すこと
func TestMe_ReturnsOnlySelf(t *testing.T) {
	f := newFixture(t)
	ctx := auth.ContextWithUserID(context.Background(), "22222222-2222-2222-2222-222222222222")

	me, err := f.svc.Me(ctx)
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}
	if me.Email != "b@x.com" {
		t.Errorf("Me().Email = %q, want %q", me.Email, "b@x.com")
	}
}

func TestMe_DeletedUser_Unauthenticated(t *testing.T) {
	f := newFixture(t)
	ctx := auth.ContextWithUserID(context.Background(), "33333333-3333-3333-3333-333333333333")

	_, err := f.svc.Me(ctx)
	assertCode(t, err, model.ErrCodeUnauthenticated)
}

func TestLookups_PassNormalisedEmailToStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Login(ctx, "  A@X.com ", testPassword); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	user, err := f.svc.UserByEmail(ctx, "B@x.COM")
	if err != nil {
		t.Fatalf("UserByEmail() error = %v", err)
	}
	if user == nil {
		t.Fatal("UserByEmail() = nil, want user")
	}

	want := []string{"a@x.com", "b@x.com"}
	if len(f.users.emailQueries) != len(want) {
		t.Fatalf("emailQueries = %q, want %q", f.users.emailQueries, want)
	}
	for i := range want {
		if f.users.emailQueries[i] != want[i] {
			t.Errorf("emailQueries[%d] = %q, want %q", i, f.users.emailQueries[i], want[i])
		}
	}
}

// --- CreateUser ---

func validInput() CreateUserInput {
	return CreateUserInput{
		Email:     "new@x.com",
		Password:  "brand-new-pass",
		FirstName: "Nia",
		LastName:  "Ono",
		Phone:     "090-0000-0000",
		Birthdate: "1990-04-01",
	}
}

func TestCreateUser_Success(t *testing.T) {
	f := newFixture(t)

	payload, err := f.svc.CreateUser(context.Background(), validInput())
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if payload.Token == "" {
		t.Error("expected token")
	}
	if payload.User.ID == "" {
		t.Error("expected generated user id")
	}
	if payload.User.PasswordHash == "brand-new-pass" {
		t.Error("password must be stored hashed")
	}
	if payload.User.Birthdate == nil || payload.User.Birthdate.Format(time.DateOnly) != "1990-04-01" {
		t.Errorf("Birthdate = %v, want 1990-04-01", payload.User.Birthdate)
	}
	if payload.User.Services == nil {
		t.Error("Services should be an empty slice, not nil")
	}

	claims, err := f.tokens.Verify(payload.Token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.UserID != payload.User.ID {
		t.Errorf("claims.UserID = %q, want %q", claims.UserID, payload.User.ID)
	}

	// 登録したユーザーでログインできること
	if _, err := f.svc.Login(context.Background(), "new@x.com", "brand-new-pass"); err != nil {
		t.Errorf("Login() after CreateUser error = %v", err)
	}
}

func TestCreateUser_DuplicateEmail_ValidationFailed(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.Email = "A@x.com"

	_, err := f.svc.CreateUser(context.Background(), in)
	assertCode(t, err, model.ErrCodeValidationFailed)
}

// 同じメールアドレスの同時登録では1件だけが成功すること
func TestCreateUser_ConcurrentDuplicates(t *testing.T) {
	f := newFixture(t)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CreateUser(context.Background(), validInput())
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		if !model.IsCode(err, model.ErrCodeValidationFailed) {
			t.Errorf("unexpected error = %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("succeeded = %d, want 1", succeeded)
	}
}

func TestCreateUser_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		modify func(in *CreateUserInput)
	}{
		{name: "bad email", modify: func(in *CreateUserInput) { in.Email = "nope" }},
		{name: "short password", modify: func(in *CreateUserInput) { in.Password = "short" }},
		// 30文字だが90バイト
		{name: "password over 72 bytes", modify: func(in *CreateUserInput) { in.Password = strings.Repeat("パ", 30) }},
		{name: "blank first name", modify: func(in *CreateUserInput) { in.FirstName = "   " }},
		{name: "bad birthdate", modify: func(in *CreateUserInput) { in.Birthdate = "1990/04/01" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := validInput()
			tt.modify(&in)

			_, err := f.svc.CreateUser(context.Background(), in)
			assertCode(t, err, model.ErrCodeValidationFailed)
		})
	}
}

func TestCreateUser_StoreFailure_IsStoreUnavailable(t *testing.T) {
	f := newFixture(t)
	f.users.err = errors.New("disk full")

	_, err := f.svc.CreateUser(context.Background(), validInput())
	assertCode(t, err, model.ErrCodeStoreUnavailable)
}

// --- Users / UserByEmail ---

func TestUsers_AttachesServices(t *testing.T) {
	f := newFixture(t)
	cut := &model.Service{ID: "s1", Name: "Cut"}
	f.services.listByUserIDsFn = func(ctx context.Context, userIDs []string) (map[string][]*model.Service, error) {
		if len(userIDs) != 2 {
			t.Errorf("userIDs = %v, want 2 ids", userIDs)
		}
		return map[string][]*model.Service{f.stored.ID: {cut}}, nil
	}

	users, err := f.svc.Users(context.Background())
	if err != nil {
		t.Fatalf("Users() error = %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("len(users) = %d, want 2", len(users))
	}
	if len(users[0].Services) != 1 || users[0].Services[0].Name != "Cut" {
		t.Errorf("users[0].Services = %v, want [Cut]", users[0].Services)
	}
	if users[1].Services == nil || len(users[1].Services) != 0 {
		t.Errorf("users[1].Services = %v, want empty slice", users[1].Services)
	}
}

func TestUsers_EmptyStore_EmptyList(t *testing.T) {
	f := newFixture(t)
	f.users.users = nil

	users, err := f.svc.Users(context.Background())
	if err != nil {
		t.Fatalf("Users() error = %v", err)
	}
	if users == nil || len(users) != 0 {
		t.Errorf("Users() = %v, want empty non-nil slice", users)
	}
}

func TestUsers_StoreFailure(t *testing.T) {
	f := newFixture(t)
	f.services.listByUserIDsFn = func(ctx context.Context, userIDs []string) (map[string][]*model.Service, error) {
		return nil, errors.New("timeout")
	}

	_, err := f.svc.Users(context.Background())
	assertCode(t, err, model.ErrCodeStoreUnavailable)
}

func TestUserByEmail_NotFound_IsNotAnError(t *testing.T) {
	f := newFixture(t)

	user, err := f.svc.UserByEmail(context.Background(), "nobody@x.com")
	if err != nil {
		t.Fatalf("UserByEmail() error = %v", err)
	}
	if user != nil {
		t.Errorf("UserByEmail() = %v, want nil", user)
	}
}

func TestUserByEmail_Found(t *testing.T) {
	f := newFixture(t)

	user, err := f.svc.UserByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("UserByEmail() error = %v", err)
	}
	if user == nil || user.ID != f.stored.ID {
		t.Errorf("UserByEmail() = %v, want user %s", user, f.stored.ID)
	}
}
