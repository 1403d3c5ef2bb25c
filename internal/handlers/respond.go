package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/friendbook/backend/internal/friends"
	"github.com/friendbook/backend/internal/logging"
	"github.com/friendbook/backend/internal/repositories"
)

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	logger := logging.FromContext(ctx)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("encode response body", "status", status, "error", err)
		return
	}

	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

func respondMessage(ctx context.Context, w http.ResponseWriter, message string) {
	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": message})
}

func respondErrorMessage(ctx context.Context, w http.ResponseWriter, status int, message string) {
	respondJSON(ctx, w, status, map[string]string{"error": message})
}

// respondError classifies err and writes the matching status. internal is the
// message shown for unclassified failures; their cause is only logged.
func respondError(ctx context.Context, w http.ResponseWriter, err error, internal string) {
	switch {
	case errors.Is(err, friends.ErrSelfRelationship):
		respondErrorMessage(ctx, w, http.StatusBadRequest, "You cannot target yourself")
	case errors.Is(err, friends.ErrAlreadyRelated):
		respondErrorMessage(ctx, w, http.StatusBadRequest, "Friend request already sent or user is already a friend")
	case errors.Is(err, friends.ErrNoPendingRequest):
		respondErrorMessage(ctx, w, http.StatusNotFound, "No pending friend request from this user")
	case errors.Is(err, repositories.ErrConflict):
		respondErrorMessage(ctx, w, http.StatusBadRequest, "Conflicting update, please retry")
	case errors.Is(err, repositories.ErrNotFound):
		respondErrorMessage(ctx, w, http.StatusNotFound, "No user found")
	default:
		logging.FromContext(ctx).Error(internal, "error", err)
		respondErrorMessage(ctx, w, http.StatusInternalServerError, internal)
	}
}
