// Package model はドメインモデルを定義する。
package model

import "time"

// User はサイトの利用者（顧客・施術者）を表す。
// Emailは全ユーザーで一意であり、ログインIDとして扱う。
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        string
	Birthdate    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Services はユーザーに紐付くメニュー。リポジトリ層では読み込まず、
	// accountサービスが一覧取得時に埋める。
	Services []*Service
}

// AuthPayload はlogin/createUserの応答を表す。
type AuthPayload struct {
	Token string
	User  *User
}
