package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/friendbook/backend/internal/logging"
)

// TokenVerifier resolves an access token to the user id it was issued to.
type TokenVerifier interface {
	Verify(accessToken string) (string, error)
}

// Authenticate requires a valid bearer token and stores the caller's user id
// on the request context. Missing or invalid tokens yield 401.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := logging.FromContext(ctx)

			token, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="friendbook"`)
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			if verifier == nil {
				logger.Error("token verifier unavailable")
				writeError(w, http.StatusInternalServerError, "authentication services unavailable")
				return
			}

			userID, err := verifier.Verify(token)
			if err != nil {
				logger.Warn("access token rejected", "error", err)
				w.Header().Set("WWW-Authenticate", `Bearer realm="friendbook", error="invalid_token"`)
				writeError(w, http.StatusUnauthorized, "invalid or expired access token")
				return
			}

			ctx = logging.WithCallerID(ctx, userID)
			ctx = logging.WithLogger(ctx, logger.With("callerId", userID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSelf rejects requests whose {param} path value differs from the
// authenticated caller with 403. It must run inside Authenticate.
func RequireSelf(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := logging.CallerIDFromContext(r.Context())
			if caller == "" || caller != r.PathValue(param) {
				logging.FromContext(r.Context()).Warn("caller does not own resource", "resource", r.PathValue(param))
				writeError(w, http.StatusForbidden, "you may only modify your own account")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
