package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/friendbook/backend/internal/friends"
	"github.com/friendbook/backend/internal/logging"
)

// FriendHandler exposes the relationship manager over HTTP. {id} is always
// the acting user and {targetUserId} the other side of the relationship.
type FriendHandler struct {
	Friends RelationshipManager
}

// NonFriends handles GET /api/users/{id}/non-friends.
func (h FriendHandler) NonFriends(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	users, err := h.Friends.ListNonFriends(ctx, r.PathValue("id"))
	if err != nil {
		respondError(ctx, w, err, "An error occurred")
		return
	}
	respondJSON(ctx, w, http.StatusOK, users)
}

// List handles GET /api/users/{id}/friends. Email addresses are only kept
// for the caller's own record.
func (h FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	users, err := h.Friends.Friends(ctx, r.PathValue("id"))
	if err != nil {
		respondError(ctx, w, err, "An error has occurred")
		return
	}

	caller := logging.CallerIDFromContext(ctx)
	for i := range users {
		if users[i].ID != caller {
			users[i].Email = ""
		}
	}
	respondJSON(ctx, w, http.StatusOK, users)
}

// Incoming handles GET /api/users/{id}/friend-requests.
func (h FriendHandler) Incoming(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	requests, err := h.Friends.IncomingRequests(ctx, r.PathValue("id"))
	if err != nil {
		respondError(ctx, w, err, "An error occurred")
		return
	}
	respondJSON(ctx, w, http.StatusOK, requests)
}

// Send handles POST /api/users/{id}/friend-requests/{targetUserId}.
func (h FriendHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	pair, err := h.Friends.SendRequest(ctx, r.PathValue("id"), r.PathValue("targetUserId"))
	if err != nil {
		respondRelationshipError(ctx, w, err, "You cannot send a friend request to yourself", "An error occurred while sending the friend request")
		return
	}
	respondMessage(ctx, w, fmt.Sprintf("Successfully %s added %s", pair.User.FirstName, pair.Target.FirstName))
}

// Accept handles POST /api/users/{id}/friends/{targetUserId}: {id} accepts the
// request previously sent by {targetUserId}.
func (h FriendHandler) Accept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	pair, err := h.Friends.AcceptRequest(ctx, r.PathValue("id"), r.PathValue("targetUserId"))
	if err != nil {
		respondRelationshipError(ctx, w, err, "You cannot accept your own friend request", "An error has occurred")
		return
	}
	respondMessage(ctx, w, fmt.Sprintf("%s accepted %s's friend request", pair.User.FirstName, pair.Target.FirstName))
}

// Rescind handles DELETE /api/users/{id}/friend-requests/{targetUserId}.
func (h FriendHandler) Rescind(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	pair, err := h.Friends.RescindRequest(ctx, r.PathValue("id"), r.PathValue("targetUserId"))
	if err != nil {
		respondRelationshipError(ctx, w, err, "You cannot rescind a friend request to yourself", "An error has occurred while attempting to rescind the friend request")
		return
	}
	respondMessage(ctx, w, fmt.Sprintf("%s rescinded %s's friend request", pair.User.FirstName, pair.Target.FirstName))
}

// Deny handles DELETE /api/users/{id}/friend-requests-in/{targetUserId}.
func (h FriendHandler) Deny(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	pair, err := h.Friends.DenyRequest(ctx, r.PathValue("id"), r.PathValue("targetUserId"))
	if err != nil {
		respondRelationshipError(ctx, w, err, "You cannot deny your own friend request", "An error occurred while denying the friend request")
		return
	}
	respondMessage(ctx, w, fmt.Sprintf("%s denied %s's friend request", pair.User.FirstName, pair.Target.FirstName))
}

// Remove handles DELETE /api/users/{id}/friends/{targetUserId}.
func (h FriendHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	pair, err := h.Friends.RemoveFriend(ctx, r.PathValue("id"), r.PathValue("targetUserId"))
	if err != nil {
		respondRelationshipError(ctx, w, err, "You cannot remove yourself as a friend", "An error occurred while removing the friend")
		return
	}
	respondMessage(ctx, w, fmt.Sprintf("%s removed %s as a friend", pair.User.FirstName, pair.Target.FirstName))
}

func (h FriendHandler) available(w http.ResponseWriter, r *http.Request) bool {
	if h.Friends != nil {
		return true
	}
	logging.FromContext(r.Context()).Error("relationship manager unavailable")
	respondErrorMessage(r.Context(), w, http.StatusInternalServerError, "friend services unavailable")
	return false
}

// respondRelationshipError reports self-targeted transitions with the message
// of the operation that was attempted.
func respondRelationshipError(ctx context.Context, w http.ResponseWriter, err error, self, internal string) {
	if errors.Is(err, friends.ErrSelfRelationship) {
		respondErrorMessage(ctx, w, http.StatusBadRequest, self)
		return
	}
	respondError(ctx, w, err, internal)
}
