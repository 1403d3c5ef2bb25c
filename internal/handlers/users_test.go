package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/friendbook/backend/internal/logging"
)

const validSignup = `{"first_name":"Ada","last_name":"Lovelace","email":"Ada@Example.com","password":"secret1","passwordtwo":"secret1","birthdate":"1990-12-10"}`

func TestUserHandlerCreate(t *testing.T) {
	store := newInMemoryUserStore()
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	handler := UserHandler{Users: store, NowFunc: func() time.Time { return now }}

	req := httptest.NewRequest(http.MethodPost, "/api/users", bytes.NewReader([]byte(validSignup)))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, leaked := resp["password"]; leaked {
		t.Fatal("password hash must not be serialized")
	}
	friends, ok := resp["friends"].([]any)
	if !ok || len(friends) != 0 {
		t.Fatalf("expected empty friends array, got %v", resp["friends"])
	}

	stored, err := store.FindByEmail(req.Context(), "ada@example.com")
	if err != nil {
		t.Fatalf("expected user stored with normalized email: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("secret1")) != nil {
		t.Fatal("stored password is not hashed")
	}
	if !stored.Birthdate.Equal(time.Date(1990, time.December, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected birthdate %v", stored.Birthdate)
	}
	if !stored.CreatedAt.Equal(now) {
		t.Fatal("expected createdAt to use NowFunc")
	}
}

func TestUserHandlerCreateValidation(t *testing.T) {
	cases := []struct {
		name       string
		body       string
		wantFields []string
	}{
		{"empty", `{}`, []string{"first_name", "last_name", "email", "password", "birthdate"}},
		{"badEmail", `{"first_name":"A","last_name":"B","email":"nope","password":"secret1","passwordtwo":"secret1","birthdate":"1990-01-01"}`, []string{"email"}},
		{"shortPassword", `{"first_name":"A","last_name":"B","email":"a@b.com","password":"abc","passwordtwo":"abc","birthdate":"1990-01-01"}`, []string{"password"}},
		{"mismatch", `{"first_name":"A","last_name":"B","email":"a@b.com","password":"secret1","passwordtwo":"secret2","birthdate":"1990-01-01"}`, []string{"passwordtwo"}},
		{"badBirthdate", `{"first_name":"A","last_name":"B","email":"a@b.com","password":"secret1","passwordtwo":"secret1","birthdate":"yesterday"}`, []string{"birthdate"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := UserHandler{Users: newInMemoryUserStore()}
			req := httptest.NewRequest(http.MethodPost, "/api/users", bytes.NewReader([]byte(tc.body)))
			rec := httptest.NewRecorder()

			handler.Create(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400 got %d", rec.Code)
			}
			var resp validationResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			got := make(map[string]bool)
			for _, e := range resp.Errors {
				got[e.Field] = true
			}
			for _, field := range tc.wantFields {
				if !got[field] {
					t.Fatalf("expected error for %s, got %+v", field, resp.Errors)
				}
			}
		})
	}
}

func TestUserHandlerCreateDuplicateEmail(t *testing.T) {
	store := newInMemoryUserStore(testUser("existing", "Ada", "ada@example.com"))
	handler := UserHandler{Users: store}

	rec := httptest.NewRecorder()
	handler.Create(rec, httptest.NewRequest(http.MethodPost, "/api/users", bytes.NewReader([]byte(validSignup))))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}

	store.err = errors.New("db down")
	rec = httptest.NewRecorder()
	handler.Create(rec, httptest.NewRequest(http.MethodPost, "/api/users", bytes.NewReader([]byte(validSignup))))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500 got %d", rec.Code)
	}
}

func TestUserHandlerGet(t *testing.T) {
	alice := testUser("alice", "Alice", "alice@example.com")
	bob := testUser("bob", "Bob", "bob@example.com")
	alice.Friends = alice.Friends.Add("bob")
	bob.Friends = bob.Friends.Add("alice")
	handler := UserHandler{Users: newInMemoryUserStore(alice, bob)}

	req := httptest.NewRequest(http.MethodGet, "/api/users/alice", nil)
	req.SetPathValue("id", "alice")
	req = req.WithContext(logging.WithCallerID(req.Context(), "bob"))
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}

	var resp struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Friends []struct {
			ID        string `json:"id"`
			FirstName string `json:"first_name"`
		} `json:"friends"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "alice" || resp.Email != "" {
		t.Fatalf("expected profile without email for other callers, got %+v", resp)
	}
	if len(resp.Friends) != 1 || resp.Friends[0].FirstName != "Bob" {
		t.Fatalf("expected populated friends, got %+v", resp.Friends)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/users/alice", nil)
	req.SetPathValue("id", "alice")
	req = req.WithContext(logging.WithCallerID(req.Context(), "alice"))
	rec = httptest.NewRecorder()
	handler.Get(rec, req)
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Email != "alice@example.com" {
		t.Fatalf("expected owner to see email, got %q", resp.Email)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/users/ghost", nil)
	req.SetPathValue("id", "ghost")
	rec = httptest.NewRecorder()
	handler.Get(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 got %d", rec.Code)
	}
}

func TestUserHandlerUpdate(t *testing.T) {
	store := newInMemoryUserStore(testUser("alice", "Alice", "alice@example.com"))
	handler := UserHandler{Users: store}

	cases := []struct {
		name       string
		id         string
		body       string
		wantStatus int
	}{
		{"bio", "alice", `{"bio":"  hello  "}`, http.StatusOK},
		{"emptyName", "alice", `{"first_name":" "}`, http.StatusBadRequest},
		{"noFields", "alice", `{}`, http.StatusBadRequest},
		{"badJSON", "alice", `{`, http.StatusBadRequest},
		{"missingUser", "ghost", `{"bio":"x"}`, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/api/users/"+tc.id, bytes.NewReader([]byte(tc.body)))
			req.SetPathValue("id", tc.id)
			rec := httptest.NewRecorder()

			handler.Update(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d got %d", tc.wantStatus, rec.Code)
			}
		})
	}

	updated := store.get("alice")
	if updated.Bio != "hello" || updated.FirstName != "Alice" {
		t.Fatalf("expected only bio to change, got %+v", updated)
	}
}

func TestUserHandlerDelete(t *testing.T) {
	alice := testUser("alice", "Alice", "alice@example.com")
	bob := testUser("bob", "Bob", "bob@example.com")
	alice.FriendRequestsOut = alice.FriendRequestsOut.Add("bob")
	bob.FriendRequestsIn = bob.FriendRequestsIn.Add("alice")
	store := newInMemoryUserStore(alice, bob)
	handler := UserHandler{Users: store}

	req := httptest.NewRequest(http.MethodDelete, "/api/users/alice", nil)
	req.SetPathValue("id", "alice")
	rec := httptest.NewRecorder()
	handler.Delete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if store.get("bob").FriendRequestsIn.Has("alice") {
		t.Fatal("expected deleted user to be detached from bob")
	}

	rec = httptest.NewRecorder()
	handler.Delete(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 deleting twice, got %d", rec.Code)
	}
}
