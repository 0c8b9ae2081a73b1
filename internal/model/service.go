// Package model はドメインモデルを定義する。
package model

// Service は予約可能なメニュー（施術内容）を表す。
type Service struct {
	ID          string
	Name        string
	Description string
	Cleanup     int // 施術後の片付け時間（分）
	Options     []ServiceOption

	// Practitioner は担当者。担当者未設定のメニューではnil。
	Practitioner *Practitioner
}

// ServiceOption は所要時間と料金の組み合わせを表す。
type ServiceOption struct {
	Duration int // 分
	Price    float64
}

// Practitioner はメニュー応答に含める担当者の公開プロフィール。
// Userのうち公開してよい項目のみを持つ。
type Practitioner struct {
	ID        string
	FirstName string
	LastName  string
}
