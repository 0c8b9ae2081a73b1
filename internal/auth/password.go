package auth

import (
	"fmt"

	"github.com/hitoshi/salonbook/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// dummyPassword はユーザー未登録時の比較に使うハッシュの元。
// 未登録と不一致で応答時間に差が出ないようにするためだけに使う。
const dummyPassword = "salonbook-timing-equalizer"

// Authenticator はbcryptによるパスワードのハッシュ化と照合を提供する。
// 平文パスワードとハッシュは決してログに出力しない。
type Authenticator struct {
	cost      int
	dummyHash []byte
}

// NewAuthenticator はAuthenticatorを生成する。
// costがbcryptの許容範囲外の場合はエラーを返す。
func NewAuthenticator(cost int) (*Authenticator, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost out of range [%d, %d]: %d", bcrypt.MinCost, bcrypt.MaxCost, cost)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte(dummyPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	return &Authenticator{cost: cost, dummyHash: dummy}, nil
}

// HashPassword はパスワードをソルト付きでハッシュ化する。
func (a *Authenticator) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword は入力パスワードが保存済みハッシュと一致するかを判定する。
// userがnilの場合もダミーハッシュと比較してからfalseを返す。
func (a *Authenticator) VerifyPassword(user *model.User, password string) bool {
	if user == nil || user.PasswordHash == "" {
		_ = bcrypt.CompareHashAndPassword(a.dummyHash, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}
