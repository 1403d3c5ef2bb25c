package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/asaskevich/govalidator"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/friendbook/backend/internal/logging"
	"github.com/friendbook/backend/internal/models"
	"github.com/friendbook/backend/internal/repositories"
)

const (
	maxNameLength = 50
	maxBioLength  = 500
)

var birthdateLayouts = []string{"2006-01-02", time.RFC3339, time.RFC3339Nano}

// UserHandler implements account endpoints.
type UserHandler struct {
	Users   UserStore
	NowFunc func() time.Time
}

// Create handles POST /api/users.
func (h UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid create user payload", "error", err)
		respondErrorMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	birthdate, problems := req.validate()
	if len(problems) > 0 {
		respondJSON(ctx, w, http.StatusBadRequest, validationResponse{Errors: problems})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("create user failed to hash password", "error", err)
		respondErrorMessage(ctx, w, http.StatusInternalServerError, "failed to secure password")
		return
	}

	now := h.now()
	user := models.User{
		ID:                uuid.NewString(),
		FirstName:         strings.TrimSpace(req.FirstName),
		LastName:          strings.TrimSpace(req.LastName),
		Email:             strings.ToLower(strings.TrimSpace(req.Email)),
		Password:          string(hashed),
		Birthdate:         birthdate,
		Friends:           models.IDSet{},
		FriendRequestsIn:  models.IDSet{},
		FriendRequestsOut: models.IDSet{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondJSON(ctx, w, http.StatusBadRequest, validationResponse{Errors: []fieldError{
				{Field: "email", Message: "An account with this email already exists"},
			}})
			return
		}
		respondError(ctx, w, err, "failed to create account")
		return
	}

	logger.Info("user created", "userId", user.ID)
	respondJSON(ctx, w, http.StatusCreated, user)
}

// Get handles GET /api/users/{id}. Friends are resolved to summaries and the
// email address is only shown to its owner.
func (h UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	user, err := h.Users.FindByID(ctx, id)
	if err != nil {
		respondError(ctx, w, err, "An error has occurred")
		return
	}

	friends, err := h.Users.FindByIDs(ctx, user.Friends.Strings())
	if err != nil {
		respondError(ctx, w, err, "An error has occurred")
		return
	}

	if logging.CallerIDFromContext(ctx) != user.ID {
		user.Email = ""
	}

	profile := userProfile{User: user, Friends: make([]models.UserSummary, 0, len(friends))}
	for _, friend := range friends {
		profile.Friends = append(profile.Friends, friend.Summary())
	}

	respondJSON(ctx, w, http.StatusOK, profile)
}

// Update handles PATCH /api/users/{id}.
func (h UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	id := r.PathValue("id")

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid update user payload", "error", err)
		respondErrorMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	update, problems := req.toUpdate()
	if len(problems) > 0 {
		respondJSON(ctx, w, http.StatusBadRequest, validationResponse{Errors: problems})
		return
	}
	update.UpdatedAt = h.now()

	if err := h.Users.UpdateProfile(ctx, id, update); err != nil {
		respondError(ctx, w, err, "There was an error updating the user")
		return
	}

	respondMessage(ctx, w, "Successfully updated user")
}

// Delete handles DELETE /api/users/{id}. The user is also removed from every
// other user's friends and request lists.
func (h UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	if err := h.Users.Delete(ctx, id); err != nil {
		respondError(ctx, w, err, "There was an error deleting the user")
		return
	}

	logging.FromContext(ctx).Info("user deleted", "userId", id)
	respondMessage(ctx, w, "Successfully deleted user")
}

func (h UserHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

type createUserRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	PasswordTwo string `json:"passwordtwo"`
	Birthdate   string `json:"birthdate"`
}

func (req createUserRequest) validate() (time.Time, []fieldError) {
	var problems []fieldError
	add := func(field, message string) {
		problems = append(problems, fieldError{Field: field, Message: message})
	}

	if govalidator.IsNull(strings.TrimSpace(req.FirstName)) {
		add("first_name", "You must enter your first name")
	} else if utf8.RuneCountInString(strings.TrimSpace(req.FirstName)) > maxNameLength {
		add("first_name", "First name is too long")
	}
	if govalidator.IsNull(strings.TrimSpace(req.LastName)) {
		add("last_name", "You must enter your last name")
	} else if utf8.RuneCountInString(strings.TrimSpace(req.LastName)) > maxNameLength {
		add("last_name", "Last name is too long")
	}
	if !govalidator.IsEmail(strings.TrimSpace(req.Email)) {
		add("email", "Invalid email address")
	}
	if !govalidator.IsByteLength(strings.TrimSpace(req.Password), 6, 72) {
		add("password", "Must be at least 6 characters")
	}
	if req.PasswordTwo != req.Password {
		add("passwordtwo", "Passwords do not match")
	}

	var birthdate time.Time
	if govalidator.IsNull(strings.TrimSpace(req.Birthdate)) {
		add("birthdate", "You must enter your birthdate")
	} else if parsed, ok := parseBirthdate(req.Birthdate); !ok {
		add("birthdate", "Invalid date of birth")
	} else {
		birthdate = parsed
	}

	return birthdate, problems
}

func parseBirthdate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range birthdateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

type updateUserRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Bio       *string `json:"bio"`
}

func (req updateUserRequest) toUpdate() (models.ProfileUpdate, []fieldError) {
	var (
		update   models.ProfileUpdate
		problems []fieldError
	)

	name := func(field string, value *string) *string {
		if value == nil {
			return nil
		}
		trimmed := strings.TrimSpace(*value)
		switch {
		case trimmed == "":
			problems = append(problems, fieldError{Field: field, Message: "must not be empty"})
		case utf8.RuneCountInString(trimmed) > maxNameLength:
			problems = append(problems, fieldError{Field: field, Message: "is too long"})
		}
		return &trimmed
	}

	update.FirstName = name("first_name", req.FirstName)
	update.LastName = name("last_name", req.LastName)
	if req.Bio != nil {
		bio := strings.TrimSpace(*req.Bio)
		if utf8.RuneCountInString(bio) > maxBioLength {
			problems = append(problems, fieldError{Field: "bio", Message: "is too long"})
		}
		update.Bio = &bio
	}

	if req.FirstName == nil && req.LastName == nil && req.Bio == nil {
		problems = append(problems, fieldError{Message: "no editable fields provided"})
	}

	return update, problems
}

type fieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type validationResponse struct {
	Errors []fieldError `json:"errors"`
}

type userProfile struct {
	models.User
	Friends []models.UserSummary `json:"friends"`
}
