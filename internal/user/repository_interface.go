package user

import (
	"context"

	"gymflow/internal/auth"
)

type Repository interface {
	Create(ctx context.Context, name, email, passwordHash string, role auth.Role) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}
