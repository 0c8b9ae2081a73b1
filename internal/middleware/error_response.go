package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/salonbook/internal/model"
)

// ErrorResponseBody はGraphQL以外のエンドポイントで返すエラーレスポンスの本文。
// GraphQLエラーのextensionsと同じ項目を持つ。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

var statusByCode = map[string]int{
	model.ErrCodeInvalidCredentials: http.StatusUnauthorized,
	model.ErrCodeUnauthenticated:    http.StatusUnauthorized,
	model.ErrCodeValidationFailed:   http.StatusBadRequest,
	model.ErrCodeRateLimited:        http.StatusTooManyRequests,
	model.ErrCodeStoreUnavailable:   http.StatusServiceUnavailable,
}

// StatusFor はエラーコードに対応するHTTPステータスを返す。
// 未知のコードは500。
func StatusFor(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteError はapiErrをJSONで書き込む。ステータスはStatusForで決まる。
func WriteError(w http.ResponseWriter, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusFor(apiErr.Code))
	json.NewEncoder(w).Encode(ErrorResponseBody(*apiErr))
}
