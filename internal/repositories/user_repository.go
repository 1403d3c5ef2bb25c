package repositories

import (
	"context"

	"github.com/friendbook/backend/internal/models"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	RelationshipRepository

	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) error
	SetMedia(ctx context.Context, id string, kind models.MediaKind, image models.Image) error
	Delete(ctx context.Context, id string) error
}
