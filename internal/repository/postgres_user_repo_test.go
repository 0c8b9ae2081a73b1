package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/salonbook/internal/model"
	"github.com/lib/pq"
)

// PostgresUserRepoはUserRepositoryインターフェースを満たすことを検証
func TestPostgresRepos_ImplementInterfaces(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
	var _ ServiceRepository = (*PostgresServiceRepo)(nil)
	var _ ContactRepository = (*PostgresContactRepo)(nil)
}

func TestNewPostgresUserRepo_Initializes(t *testing.T) {
	repo := NewPostgresUserRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// UUID形式でないIDはDBに問い合わせずに未検出として扱うこと
func TestPostgresUserRepo_FindByID_InvalidUUID_ReturnsNil(t *testing.T) {
	repo := NewPostgresUserRepo(nil) // DBに触れるとnil参照でpanicする

	user, err := repo.FindByID(context.Background(), "not-a-uuid")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if user != nil {
		t.Errorf("expected nil user, got %+v", user)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{
			name:       "matching constraint",
			err:        &pq.Error{Code: "23505", Constraint: usersEmailConstraint},
			constraint: usersEmailConstraint,
			want:       true,
		},
		{
			name:       "wrapped error",
			err:        fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Constraint: usersEmailConstraint}),
			constraint: usersEmailConstraint,
			want:       true,
		},
		{
			name:       "other constraint",
			err:        &pq.Error{Code: "23505", Constraint: "services_name_key"},
			constraint: usersEmailConstraint,
			want:       false,
		},
		{
			name:       "any constraint",
			err:        &pq.Error{Code: "23505", Constraint: "services_name_key"},
			constraint: "",
			want:       true,
		},
		{
			name:       "other sqlstate",
			err:        &pq.Error{Code: "23503"},
			constraint: "",
			want:       false,
		},
		{
			name: "non pq error",
			err:  errors.New("connection refused"),
			want: false,
		},
		{
			name: "nil",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err, tt.constraint); got != tt.want {
				t.Errorf("isUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

// fakeRow はScanに渡された値を順に書き込むrowScanner。
type fakeRow struct {
	values []any
	err    error
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: got %d destinations, want %d", len(dest), len(r.values))
	}
	for i, v := range r.values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int:
			*d = v.(int)
		case *time.Time:
			*d = v.(time.Time)
		case *sql.NullTime:
			if v == nil {
				*d = sql.NullTime{}
			} else {
				*d = sql.NullTime{Time: v.(time.Time), Valid: true}
			}
		case *sql.NullString:
			if v == nil {
				*d = sql.NullString{}
			} else {
				*d = sql.NullString{String: v.(string), Valid: true}
			}
		default:
			return fmt.Errorf("unsupported destination %T", dest[i])
		}
	}
	return nil
}

func TestScanUser_MapsNullableBirthdate(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	birth := time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC)

	withBirth, err := scanUser(&fakeRow{values: []any{
		"id-1", "a@example.com", "hash", "Ann", "Lee", "555-0100", birth, now, now,
	}})
	if err != nil {
		t.Fatalf("scanUser() error = %v", err)
	}
	if withBirth.Birthdate == nil || !withBirth.Birthdate.Equal(birth) {
		t.Errorf("Birthdate = %v, want %v", withBirth.Birthdate, birth)
	}

	withoutBirth, err := scanUser(&fakeRow{values: []any{
		"id-2", "b@example.com", "hash", "Bo", "Kim", "", nil, now, now,
	}})
	if err != nil {
		t.Fatalf("scanUser() error = %v", err)
	}
	if withoutBirth.Birthdate != nil {
		t.Errorf("Birthdate = %v, want nil", withoutBirth.Birthdate)
	}
}

func TestScanUser_PropagatesNoRows(t *testing.T) {
	_, err := scanUser(&fakeRow{err: sql.ErrNoRows})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("error = %v, want sql.ErrNoRows", err)
	}
}

func TestScanService_WithAndWithoutPractitioner(t *testing.T) {
	svc, err := scanService(&fakeRow{values: []any{
		"svc-1", "Facial", "desc", 10, "user-9", "Mia", "Sato",
	}})
	if err != nil {
		t.Fatalf("scanService() error = %v", err)
	}
	if svc.Practitioner == nil {
		t.Fatal("expected practitioner")
	}
	if svc.Practitioner.ID != "user-9" || svc.Practitioner.FirstName != "Mia" || svc.Practitioner.LastName != "Sato" {
		t.Errorf("Practitioner = %+v", svc.Practitioner)
	}
	if svc.Options == nil {
		t.Error("Options should be an empty slice, not nil")
	}

	noPractitioner, err := scanService(&fakeRow{values: []any{
		"svc-2", "Massage", "desc", 15, nil, nil, nil,
	}})
	if err != nil {
		t.Fatalf("scanService() error = %v", err)
	}
	if noPractitioner.Practitioner != nil {
		t.Errorf("Practitioner = %+v, want nil", noPractitioner.Practitioner)
	}
}

func TestPrefixedScanner_PrependsDestinations(t *testing.T) {
	var userID string
	row := &fakeRow{values: []any{"user-1", "svc-1", "Facial", "desc", 10, nil, nil, nil}}

	svc, err := scanService(prefixedScanner{row: row, prefix: []any{&userID}})
	if err != nil {
		t.Fatalf("scanService() error = %v", err)
	}
	if userID != "user-1" {
		t.Errorf("userID = %q, want %q", userID, "user-1")
	}
	if svc.ID != "svc-1" {
		t.Errorf("svc.ID = %q, want %q", svc.ID, "svc-1")
	}
}

func TestNullTime(t *testing.T) {
	if nt := nullTime(&model.User{}); nt.Valid {
		t.Error("expected invalid NullTime for nil birthdate")
	}

	b := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	nt := nullTime(&model.User{Birthdate: &b})
	if !nt.Valid || !nt.Time.Equal(b) {
		t.Errorf("nullTime() = %+v, want %v", nt, b)
	}
}

// メールアドレス検索は引数を加工せず、lower(email)の式インデックスと同じ形で比較すること
func TestFindUserByEmailQuery_MatchesLowerEmailIndex(t *testing.T) {
	if !strings.HasSuffix(findUserByEmailQuery, "WHERE lower(email) = $1") {
		t.Errorf("query = %q, want comparison lower(email) = $1", findUserByEmailQuery)
	}
	if strings.Contains(findUserByEmailQuery, "lower($1)") {
		t.Errorf("query = %q, parameter must be normalised by the caller", findUserByEmailQuery)
	}
}
