package repositories

import (
	"context"

	"github.com/friendbook/backend/internal/models"
)

// PairMutator edits two user records in place. Implementations of UpdatePair
// may invoke it more than once when a transaction is retried.
type PairMutator func(a, b *models.User) error

// RelationshipRepository exposes the document operations the relationship
// manager needs: lookup, population of identifier lists, exclusion queries and
// an atomic save of two records.
type RelationshipRepository interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
	ListExcluding(ctx context.Context, exclude []string) ([]models.User, error)
	UpdatePair(ctx context.Context, aID, bID string, mutate PairMutator) error
}

// orderByIDs returns users arranged in the order of ids, skipping identifiers
// that did not resolve.
func orderByIDs(ids []string, users []models.User) []models.User {
	byID := make(map[string]models.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}

	ordered := make([]models.User, 0, len(users))
	for _, id := range ids {
		if user, ok := byID[id]; ok {
			ordered = append(ordered, user)
			delete(byID, id)
		}
	}
	return ordered
}

// normalizeSets replaces nil relationship sets with empty ones so stores never
// persist null arrays.
func normalizeSets(user *models.User) {
	if user.Friends == nil {
		user.Friends = models.IDSet{}
	}
	if user.FriendRequestsIn == nil {
		user.FriendRequestsIn = models.IDSet{}
	}
	if user.FriendRequestsOut == nil {
		user.FriendRequestsOut = models.IDSet{}
	}
}
