package handlers

import (
	"context"
	"io"

	"github.com/friendbook/backend/internal/friends"
	"github.com/friendbook/backend/internal/models"
)

// UserStore captures the persistence operations required by the user, auth
// and media handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) error
	SetMedia(ctx context.Context, id string, kind models.MediaKind, image models.Image) error
	Delete(ctx context.Context, id string) error
}

// SessionManager issues and refreshes authentication tokens for users.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
}

// TokenVerifier resolves access tokens to user ids.
type TokenVerifier interface {
	Verify(accessToken string) (string, error)
}

// RelationshipManager runs the friend request state machine.
type RelationshipManager interface {
	ListNonFriends(ctx context.Context, userID string) ([]models.UserSummary, error)
	Friends(ctx context.Context, userID string) ([]models.User, error)
	IncomingRequests(ctx context.Context, userID string) ([]models.UserSummary, error)
	SendRequest(ctx context.Context, fromID, toID string) (friends.Pair, error)
	AcceptRequest(ctx context.Context, userID, requesterID string) (friends.Pair, error)
	RescindRequest(ctx context.Context, fromID, toID string) (friends.Pair, error)
	DenyRequest(ctx context.Context, userID, requesterID string) (friends.Pair, error)
	RemoveFriend(ctx context.Context, userID, friendID string) (friends.Pair, error)
}

// MediaStorage persists uploaded images and returns their public location.
type MediaStorage interface {
	Save(ctx context.Context, key, contentType string, r io.Reader) (string, error)
}
