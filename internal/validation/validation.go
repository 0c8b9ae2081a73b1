// Package validation は入力構造体のタグベース検証を提供する。
// 検証エラーはクライアントにそのまま返せるValidationFailedエラーに変換する。
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hitoshi/salonbook/internal/model"
)

// validate は構造体情報をキャッシュするため、パッケージで1つだけ保持する。
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// エラーメッセージにはGo側のフィールド名ではなくjsonタグの名前を使う
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Struct はvalidateタグに従ってsを検証する。
// 最初に違反したフィールドの内容をValidationFailedエラーとして返す。
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("failed to validate input: %w", err)
	}
	return model.NewValidationFailedError(Message(fieldErrs[0]))
}

// Message はフィールドエラーを利用者向けの文言に変換する。
func Message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%sは必須です", field)
	case "email":
		return fmt.Sprintf("%sの形式が正しくありません", field)
	case "min":
		return fmt.Sprintf("%sは%s文字以上で入力してください", field, fe.Param())
	case "max":
		return fmt.Sprintf("%sは%s文字以内で入力してください", field, fe.Param())
	case "datetime":
		return fmt.Sprintf("%sはYYYY-MM-DD形式で入力してください", field)
	default:
		return fmt.Sprintf("%sの値が正しくありません", field)
	}
}
