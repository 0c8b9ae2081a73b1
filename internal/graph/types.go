package graph

import (
	"time"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/hitoshi/salonbook/internal/model"
)

// userResolver はUser型のフィールドを解決する。
// パスワードハッシュを返すフィールドは持たない。
type userResolver struct {
	u *model.User
}

func (r *userResolver) ID() graphql.ID    { return graphql.ID(r.u.ID) }
func (r *userResolver) Email() string     { return r.u.Email }
func (r *userResolver) FirstName() string { return r.u.FirstName }
func (r *userResolver) LastName() string  { return r.u.LastName }

func (r *userResolver) Phone() *string {
	if r.u.Phone == "" {
		return nil
	}
	return &r.u.Phone
}

func (r *userResolver) Birthdate() *string {
	if r.u.Birthdate == nil {
		return nil
	}
	s := r.u.Birthdate.Format(time.DateOnly)
	return &s
}

func (r *userResolver) Services() []*serviceResolver {
	return newServiceResolvers(r.u.Services)
}

func newUserResolvers(users []*model.User) []*userResolver {
	out := make([]*userResolver, 0, len(users))
	for _, u := range users {
		out = append(out, &userResolver{u: u})
	}
	return out
}

// serviceResolver はService型のフィールドを解決する。
type serviceResolver struct {
	s *model.Service
}

func (r *serviceResolver) ID() graphql.ID      { return graphql.ID(r.s.ID) }
func (r *serviceResolver) Name() string        { return r.s.Name }
func (r *serviceResolver) Description() string { return r.s.Description }
func (r *serviceResolver) Cleanup() int32      { return int32(r.s.Cleanup) }

func (r *serviceResolver) Options() []*serviceOptionResolver {
	out := make([]*serviceOptionResolver, 0, len(r.s.Options))
	for _, o := range r.s.Options {
		out = append(out, &serviceOptionResolver{o: o})
	}
	return out
}

func (r *serviceResolver) Practitioner() *practitionerResolver {
	if r.s.Practitioner == nil {
		return nil
	}
	return &practitionerResolver{p: r.s.Practitioner}
}

func newServiceResolvers(services []*model.Service) []*serviceResolver {
	out := make([]*serviceResolver, 0, len(services))
	for _, s := range services {
		out = append(out, &serviceResolver{s: s})
	}
	return out
}

type serviceOptionResolver struct {
	o model.ServiceOption
}

func (r *serviceOptionResolver) Duration() int32 { return int32(r.o.Duration) }
func (r *serviceOptionResolver) Price() float64  { return r.o.Price }

// practitionerResolver は担当者として公開してよい項目のみを解決する。
type practitionerResolver struct {
	p *model.Practitioner
}

func (r *practitionerResolver) ID() graphql.ID    { return graphql.ID(r.p.ID) }
func (r *practitionerResolver) FirstName() string { return r.p.FirstName }
func (r *practitionerResolver) LastName() string  { return r.p.LastName }

type authResolver struct {
	a *model.AuthPayload
}

func (r *authResolver) Token() string       { return r.a.Token }
func (r *authResolver) User() *userResolver { return &userResolver{u: r.a.User} }

type contactReceiptResolver struct {
	m *model.ContactMessage
}

func (r *contactReceiptResolver) ID() graphql.ID { return graphql.ID(r.m.ID) }
func (r *contactReceiptResolver) CreatedAt() string {
	return r.m.CreatedAt.UTC().Format(time.RFC3339)
}
