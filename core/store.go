package core

import (
	"context"

	"github.com/go-playground/validator/v10"
)

// Store is the contract every organization-scoped entity kind satisfies, on the server (services)
// as well as on the client (remote stores). T is the entity, N the creation payload and P the patch.
type Store[T, N, P any] interface {
	Create(ctx context.Context, scope Scope, payload N) (T, error)
	GetMany(ctx context.Context, scope Scope) ([]T, error)
	GetOne(ctx context.Context, id string, scope Scope) (T, error)
	Update(ctx context.Context, id string, scope Scope, patch P) (T, error)
	Delete(ctx context.Context, id string, scope Scope) error
}

// Payload is a creation payload or a patch: it cleans itself and is then validated.
type Payload interface {
	Clean()
}

// Validate cleans & validates a payload.
func Validate(validate *validator.Validate, p Payload) error {
	p.Clean()
	return validate.Struct(p)
}
