package friends

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/friendbook/backend/internal/events"
	"github.com/friendbook/backend/internal/logging"
	"github.com/friendbook/backend/internal/models"
	"github.com/friendbook/backend/internal/repositories"
)

var (
	// ErrSelfRelationship is returned when a user targets themselves.
	ErrSelfRelationship = errors.New("users cannot befriend themselves")
	// ErrAlreadyRelated is returned when a request would duplicate an existing
	// friendship or pending request in either direction.
	ErrAlreadyRelated = fmt.Errorf("friend request already sent or user is already a friend: %w", repositories.ErrConflict)
	// ErrNoPendingRequest is returned when accepting a request that was never sent.
	ErrNoPendingRequest = fmt.Errorf("no pending friend request: %w", repositories.ErrNotFound)
)

// Store is the document access the manager depends on.
type Store interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
	ListExcluding(ctx context.Context, exclude []string) ([]models.User, error)
	UpdatePair(ctx context.Context, aID, bID string, mutate repositories.PairMutator) error
}

// Pair holds the two records touched by a mutation as they were committed.
// User is always the caller and Target the other side.
type Pair struct {
	User   models.User
	Target models.User
}

// Manager maintains the friendship state machine over the friends,
// friend_requests_in and friend_requests_out sets of each user. Every mutation
// updates both users in one store transaction so the sets stay symmetric.
type Manager struct {
	store     Store
	publisher events.Publisher
	now       func() time.Time
}

// NewManager constructs a Manager. A nil publisher discards events.
func NewManager(store Store, publisher events.Publisher) *Manager {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Manager{
		store:     store,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ListNonFriends returns summaries of every user other than userID and its friends.
func (m *Manager) ListNonFriends(ctx context.Context, userID string) (_ []models.UserSummary, err error) {
	ctx, span := logging.StartSpan(ctx, "friends.list_non_friends", "userId", userID)
	defer func() { span.Fail(err); span.End() }()

	user, err := m.store.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", userID, err)
	}

	exclude := append([]string{user.ID}, user.Friends.Strings()...)
	users, err := m.store.ListExcluding(ctx, exclude)
	if err != nil {
		return nil, fmt.Errorf("list non-friends of %s: %w", userID, err)
	}

	return summaries(users), nil
}

// Friends resolves the friends of userID to full user records.
func (m *Manager) Friends(ctx context.Context, userID string) (_ []models.User, err error) {
	ctx, span := logging.StartSpan(ctx, "friends.list_friends", "userId", userID)
	defer func() { span.Fail(err); span.End() }()

	user, err := m.store.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", userID, err)
	}

	friends, err := m.store.FindByIDs(ctx, user.Friends.Strings())
	if err != nil {
		return nil, fmt.Errorf("resolve friends of %s: %w", userID, err)
	}
	return friends, nil
}

// IncomingRequests resolves the users with a pending request to userID.
func (m *Manager) IncomingRequests(ctx context.Context, userID string) (_ []models.UserSummary, err error) {
	ctx, span := logging.StartSpan(ctx, "friends.list_incoming", "userId", userID)
	defer func() { span.Fail(err); span.End() }()

	user, err := m.store.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", userID, err)
	}

	requesters, err := m.store.FindByIDs(ctx, user.FriendRequestsIn.Strings())
	if err != nil {
		return nil, fmt.Errorf("resolve requesters of %s: %w", userID, err)
	}
	return summaries(requesters), nil
}

// SendRequest records a pending request from fromID to toID.
func (m *Manager) SendRequest(ctx context.Context, fromID, toID string) (Pair, error) {
	return m.mutate(ctx, "friends.send_request", events.FriendRequestSent, fromID, toID, func(from, to *models.User) error {
		if from.Friends.Has(to.ID) || to.Friends.Has(from.ID) ||
			from.FriendRequestsOut.Has(to.ID) || to.FriendRequestsOut.Has(from.ID) {
			return ErrAlreadyRelated
		}
		from.FriendRequestsOut = from.FriendRequestsOut.Add(to.ID)
		to.FriendRequestsIn = to.FriendRequestsIn.Add(from.ID)
		return nil
	})
}

// AcceptRequest has userID accept the pending request sent by requesterID.
func (m *Manager) AcceptRequest(ctx context.Context, userID, requesterID string) (Pair, error) {
	return m.mutate(ctx, "friends.accept_request", events.FriendRequestAccepted, userID, requesterID, func(user, requester *models.User) error {
		if !user.FriendRequestsIn.Has(requester.ID) {
			return ErrNoPendingRequest
		}
		user.FriendRequestsIn = user.FriendRequestsIn.Remove(requester.ID)
		requester.FriendRequestsOut = requester.FriendRequestsOut.Remove(user.ID)
		user.Friends = user.Friends.Add(requester.ID)
		requester.Friends = requester.Friends.Add(user.ID)
		return nil
	})
}

// RescindRequest withdraws the request fromID sent to toID. Rescinding a
// request that does not exist leaves both users unchanged.
func (m *Manager) RescindRequest(ctx context.Context, fromID, toID string) (Pair, error) {
	return m.mutate(ctx, "friends.rescind_request", events.FriendRequestRescinded, fromID, toID, func(from, to *models.User) error {
		from.FriendRequestsOut = from.FriendRequestsOut.Remove(to.ID)
		to.FriendRequestsIn = to.FriendRequestsIn.Remove(from.ID)
		return nil
	})
}

// DenyRequest has userID refuse the request sent by requesterID. Denying a
// request that does not exist leaves both users unchanged.
func (m *Manager) DenyRequest(ctx context.Context, userID, requesterID string) (Pair, error) {
	return m.mutate(ctx, "friends.deny_request", events.FriendRequestDenied, userID, requesterID, func(user, requester *models.User) error {
		user.FriendRequestsIn = user.FriendRequestsIn.Remove(requester.ID)
		requester.FriendRequestsOut = requester.FriendRequestsOut.Remove(user.ID)
		return nil
	})
}

// RemoveFriend ends the friendship between userID and friendID. Removing a
// user who is not a friend leaves both users unchanged.
func (m *Manager) RemoveFriend(ctx context.Context, userID, friendID string) (Pair, error) {
	return m.mutate(ctx, "friends.remove_friend", events.FriendRemoved, userID, friendID, func(user, friend *models.User) error {
		user.Friends = user.Friends.Remove(friend.ID)
		friend.Friends = friend.Friends.Remove(user.ID)
		return nil
	})
}

func (m *Manager) mutate(ctx context.Context, op string, eventType events.Type, userID, targetID string, apply repositories.PairMutator) (_ Pair, err error) {
	ctx, span := logging.StartSpan(ctx, op, "userId", userID, "targetUserId", targetID)
	defer func() { span.Fail(err); span.End() }()

	if userID == targetID {
		return Pair{}, ErrSelfRelationship
	}

	// apply may run more than once when the store retries, so the pair is
	// captured from the last successful invocation.
	var pair Pair
	err = m.store.UpdatePair(ctx, userID, targetID, func(a, b *models.User) error {
		if err := apply(a, b); err != nil {
			return err
		}
		pair = Pair{User: *a, Target: *b}
		return nil
	})
	if err != nil {
		return Pair{}, fmt.Errorf("%s %s -> %s: %w", op, userID, targetID, err)
	}

	event := events.Event{
		Type:       eventType,
		ActorID:    userID,
		TargetID:   targetID,
		OccurredAt: m.now(),
	}
	if pubErr := m.publisher.Publish(ctx, event); pubErr != nil {
		logging.FromContext(ctx).Warn("publish relationship event", "type", eventType, "error", pubErr)
	}

	return pair, nil
}

func summaries(users []models.User) []models.UserSummary {
	out := make([]models.UserSummary, 0, len(users))
	for _, user := range users {
		out = append(out, user.Summary())
	}
	return out
}
