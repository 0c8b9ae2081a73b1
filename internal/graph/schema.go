package graph

import (
	_ "embed"
	"fmt"
	"net/http"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
)

//go:embed schema.graphql
var schemaSDL string

// maxQueryDepth はクエリのネストの上限。
// User.services.practitionerまでの深さに余裕を持たせた値。
const maxQueryDepth = 8

// maxBodyBytes はGraphQLリクエストボディの上限。
const maxBodyBytes = 64 << 10

// NewSchema はスキーマを解析し、リゾルバーと結び付ける。
// スキーマとリゾルバーのメソッドが一致しない場合はエラーを返す。
func NewSchema(resolver *Resolver) (*graphql.Schema, error) {
	schema, err := graphql.ParseSchema(schemaSDL, resolver,
		graphql.MaxDepth(maxQueryDepth),
		graphql.Logger(panicLogger{}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GraphQL schema: %w", err)
	}
	return schema, nil
}

// NewHandler はPOST /graphql用のHTTPハンドラーを返す。
func NewHandler(schema *graphql.Schema) http.Handler {
	h := &relay.Handler{Schema: schema}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		h.ServeHTTP(w, r)
	})
}
