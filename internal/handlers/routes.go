package handlers

import (
	"net/http"

	"github.com/friendbook/backend/internal/middleware"
)

// RegisterRoutes wires HTTP handlers into the provided ServeMux. Read routes
// require any authenticated caller; routes that change /api/users/{id}
// require the caller to be {id}.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Store: deps.Health}
	authn := AuthHandler{Users: deps.Users, Sessions: deps.Sessions, Limiter: deps.LoginLimiter}
	users := UserHandler{Users: deps.Users}
	friends := FriendHandler{Friends: deps.Friends}
	media := MediaHandler{Users: deps.Users, Storage: deps.Media, MaxUploadBytes: deps.MaxUploadBytes}

	authenticated := middleware.Authenticate(deps.Tokens)
	read := func(h http.HandlerFunc) http.Handler {
		return authenticated(h)
	}
	owner := func(h http.HandlerFunc) http.Handler {
		return authenticated(middleware.RequireSelf("id")(h))
	}

	mux.HandleFunc("GET /healthz", health.Handle)
	mux.HandleFunc("POST /auth/login", authn.Login)
	mux.HandleFunc("POST /auth/refresh", authn.Refresh)

	mux.HandleFunc("POST /api/users", users.Create)
	mux.Handle("GET /api/users/{id}", read(users.Get))
	mux.Handle("PATCH /api/users/{id}", owner(users.Update))
	mux.Handle("DELETE /api/users/{id}", owner(users.Delete))
	mux.Handle("PUT /api/users/{id}/banner", owner(media.UploadBanner))
	mux.Handle("PUT /api/users/{id}/picture", owner(media.UploadPicture))

	mux.Handle("GET /api/users/{id}/non-friends", read(friends.NonFriends))
	mux.Handle("GET /api/users/{id}/friends", read(friends.List))
	mux.Handle("GET /api/users/{id}/friend-requests", read(friends.Incoming))
	mux.Handle("POST /api/users/{id}/friend-requests/{targetUserId}", owner(friends.Send))
	mux.Handle("DELETE /api/users/{id}/friend-requests/{targetUserId}", owner(friends.Rescind))
	mux.Handle("DELETE /api/users/{id}/friend-requests-in/{targetUserId}", owner(friends.Deny))
	mux.Handle("POST /api/users/{id}/friends/{targetUserId}", owner(friends.Accept))
	mux.Handle("DELETE /api/users/{id}/friends/{targetUserId}", owner(friends.Remove))
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users          UserStore
	Sessions       SessionManager
	Tokens         TokenVerifier
	Friends        RelationshipManager
	Media          MediaStorage
	Health         Pinger
	LoginLimiter   RateLimiter
	MaxUploadBytes int64
}
