package models

import "time"

// User represents an account within the friendbook platform. The three
// relationship sets are owned by the friends package; everything else is
// profile data managed through the users API.
type User struct {
	ID                string    `json:"id" bson:"_id"`
	FirstName         string    `json:"first_name" bson:"first_name"`
	LastName          string    `json:"last_name" bson:"last_name"`
	Email             string    `json:"email,omitempty" bson:"email"`
	Password          string    `json:"-" bson:"password"`
	Bio               string    `json:"bio" bson:"bio"`
	Birthdate         time.Time `json:"birthdate" bson:"birthdate"`
	ProfilePicture    Image     `json:"profile_picture" bson:"profile_picture"`
	Banner            Image     `json:"banner" bson:"banner"`
	Friends           IDSet     `json:"friends" bson:"friends"`
	FriendRequestsIn  IDSet     `json:"friend_requests_in" bson:"friend_requests_in"`
	FriendRequestsOut IDSet     `json:"friend_requests_out" bson:"friend_requests_out"`
	CreatedAt         time.Time `json:"date_created" bson:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" bson:"updated_at"`
}

// Image references an uploaded media object.
type Image struct {
	URL         string `json:"url" bson:"url"`
	ContentType string `json:"content_type" bson:"content_type"`
}

// UserSummary is the projection returned by list endpoints.
type UserSummary struct {
	ID                string `json:"id"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	ProfilePicture    Image  `json:"profile_picture"`
	Friends           IDSet  `json:"friends"`
	FriendRequestsIn  IDSet  `json:"friend_requests_in"`
	FriendRequestsOut IDSet  `json:"friend_requests_out"`
}

// Summary projects the user onto its summary view.
func (u User) Summary() UserSummary {
	return UserSummary{
		ID:                u.ID,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		ProfilePicture:    u.ProfilePicture,
		Friends:           u.Friends,
		FriendRequestsIn:  u.FriendRequestsIn,
		FriendRequestsOut: u.FriendRequestsOut,
	}
}

// ProfileUpdate carries the editable profile fields. Nil fields are left untouched.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Bio       *string
	UpdatedAt time.Time
}

// MediaKind selects which image slot of a user an upload replaces.
type MediaKind string

const (
	MediaBanner         MediaKind = "banner"
	MediaProfilePicture MediaKind = "profile_picture"
)

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
