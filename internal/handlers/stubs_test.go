package handlers

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/friendbook/backend/internal/models"
	"github.com/friendbook/backend/internal/repositories"
)

// inMemoryUserStore satisfies both UserStore and friends.Store.
type inMemoryUserStore struct {
	mu    sync.Mutex
	users map[string]models.User
	order []string
	err   error
}

func newInMemoryUserStore(users ...models.User) *inMemoryUserStore {
	s := &inMemoryUserStore{users: make(map[string]models.User)}
	for _, user := range users {
		s.users[user.ID] = user
		s.order = append(s.order, user.ID)
	}
	return s
}

func (s *inMemoryUserStore) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return repositories.ErrConflict
		}
	}
	s.users[user.ID] = user
	s.order = append(s.order, user.ID)
	return nil
}

func (s *inMemoryUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return models.User{}, s.err
	}
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (s *inMemoryUserStore) FindByIDs(_ context.Context, ids []string) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.User{}
	for _, id := range ids {
		if user, ok := s.users[id]; ok {
			out = append(out, user)
		}
	}
	return out, nil
}

func (s *inMemoryUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *inMemoryUserStore) ListExcluding(_ context.Context, exclude []string) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	skip := models.NewIDSet(exclude...)
	out := []models.User{}
	for _, id := range s.order {
		if user, ok := s.users[id]; ok && !skip.Has(id) {
			out = append(out, user)
		}
	}
	return out, nil
}

func (s *inMemoryUserStore) UpdatePair(_ context.Context, aID, bID string, mutate repositories.PairMutator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, okA := s.users[aID]
	b, okB := s.users[bID]
	if !okA || !okB {
		return repositories.ErrNotFound
	}
	if err := mutate(&a, &b); err != nil {
		return err
	}
	s.users[aID], s.users[bID] = a, b
	return nil
}

func (s *inMemoryUserStore) UpdateProfile(_ context.Context, id string, update models.ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	user, ok := s.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if update.FirstName != nil {
		user.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		user.LastName = *update.LastName
	}
	if update.Bio != nil {
		user.Bio = *update.Bio
	}
	user.UpdatedAt = update.UpdatedAt
	s.users[id] = user
	return nil
}

func (s *inMemoryUserStore) SetMedia(_ context.Context, id string, kind models.MediaKind, image models.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	switch kind {
	case models.MediaBanner:
		user.Banner = image
	case models.MediaProfilePicture:
		user.ProfilePicture = image
	default:
		return errors.New("unknown media kind")
	}
	s.users[id] = user
	return nil
}

func (s *inMemoryUserStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.users, id)
	for otherID, other := range s.users {
		other.Friends = other.Friends.Remove(id)
		other.FriendRequestsIn = other.FriendRequestsIn.Remove(id)
		other.FriendRequestsOut = other.FriendRequestsOut.Remove(id)
		s.users[otherID] = other
	}
	return nil
}

func (s *inMemoryUserStore) get(id string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}

type mediaStorageStub struct {
	keys         []string
	contentTypes []string
	data         [][]byte
	err          error
}

func (m *mediaStorageStub) Save(_ context.Context, key, contentType string, r io.Reader) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.keys = append(m.keys, key)
	m.contentTypes = append(m.contentTypes, contentType)
	m.data = append(m.data, data)
	return "https://cdn.example.com/" + key, nil
}

func testUser(id, first, email string) models.User {
	return models.User{
		ID:                id,
		FirstName:         first,
		LastName:          "Tester",
		Email:             email,
		Friends:           models.IDSet{},
		FriendRequestsIn:  models.IDSet{},
		FriendRequestsOut: models.IDSet{},
	}
}
