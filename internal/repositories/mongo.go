package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/friendbook/backend/internal/auth"
	"github.com/friendbook/backend/internal/models"
)

const (
	usersCollection    = "users"
	sessionsCollection = "sessions"
)

// ConnectMongo opens a client against uri and verifies the primary is reachable.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return client, nil
}

// MongoUserRepository stores each user as a single document. Pair updates run
// inside a multi-document transaction, which requires a replica set.
type MongoUserRepository struct {
	client *mongo.Client
	users  *mongo.Collection
}

// NewMongoUserRepository constructs a user repository backed by MongoDB.
func NewMongoUserRepository(client *mongo.Client, database string) *MongoUserRepository {
	return &MongoUserRepository{
		client: client,
		users:  client.Database(database).Collection(usersCollection),
	}
}

// EnsureIndexes creates the unique email index.
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create users email index: %w", err)
	}
	return nil
}

// Create persists a new user document.
func (r *MongoUserRepository) Create(ctx context.Context, user models.User) error {
	normalizeSets(&user)

	if _, err := r.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindByID fetches a user by identifier.
func (r *MongoUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// FindByEmail fetches a user by their email address.
func (r *MongoUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (models.User, error) {
	var user models.User
	if err := r.users.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// FindByIDs resolves identifiers to users, preserving the order of ids.
func (r *MongoUserRepository) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}

	users, err := r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	return orderByIDs(ids, users), nil
}

// ListExcluding returns every user whose id is not in exclude, oldest first.
func (r *MongoUserRepository) ListExcluding(ctx context.Context, exclude []string) ([]models.User, error) {
	if exclude == nil {
		exclude = []string{}
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$nin": exclude}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
}

func (r *MongoUserRepository) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.User, error) {
	cursor, err := r.users.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

// UpdateProfile applies the non-nil fields of update.
func (r *MongoUserRepository) UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) error {
	set := bson.M{"updated_at": update.UpdatedAt}
	if update.FirstName != nil {
		set["first_name"] = *update.FirstName
	}
	if update.LastName != nil {
		set["last_name"] = *update.LastName
	}
	if update.Bio != nil {
		set["bio"] = *update.Bio
	}

	return r.updateOne(ctx, id, bson.M{"$set": set})
}

// SetMedia replaces the banner or profile picture reference of a user.
func (r *MongoUserRepository) SetMedia(ctx context.Context, id string, kind models.MediaKind, image models.Image) error {
	switch kind {
	case models.MediaBanner, models.MediaProfilePicture:
	default:
		return fmt.Errorf("unknown media kind %q", kind)
	}

	return r.updateOne(ctx, id, bson.M{"$set": bson.M{
		string(kind): image,
		"updated_at": time.Now().UTC(),
	}})
}

func (r *MongoUserRepository) updateOne(ctx context.Context, id string, update bson.M) error {
	res, err := r.users.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePair loads both documents, applies mutate and writes back both
// relationship sets inside one transaction.
func (r *MongoUserRepository) UpdatePair(ctx context.Context, aID, bID string, mutate PairMutator) error {
	if aID == bID {
		return fmt.Errorf("update pair: identical user ids %q", aID)
	}

	return r.inTransaction(ctx, func(sc mongo.SessionContext) error {
		a, err := r.findOne(sc, bson.M{"_id": aID})
		if err != nil {
			return err
		}
		b, err := r.findOne(sc, bson.M{"_id": bID})
		if err != nil {
			return err
		}

		if err := mutate(&a, &b); err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, user := range []*models.User{&a, &b} {
			normalizeSets(user)
			if err := r.updateOne(sc, user.ID, bson.M{"$set": bson.M{
				"friends":             user.Friends.Strings(),
				"friend_requests_in":  user.FriendRequestsIn.Strings(),
				"friend_requests_out": user.FriendRequestsOut.Strings(),
				"updated_at":          now,
			}}); err != nil {
				return fmt.Errorf("update relationships for %s: %w", user.ID, err)
			}
		}
		return nil
	})
}

// Delete removes a user document, its sessions, and every reference to it in
// other users' relationship sets.
func (r *MongoUserRepository) Delete(ctx context.Context, id string) error {
	sessions := r.users.Database().Collection(sessionsCollection)

	return r.inTransaction(ctx, func(sc mongo.SessionContext) error {
		if _, err := r.users.UpdateMany(sc,
			bson.M{"$or": bson.A{
				bson.M{"friends": id},
				bson.M{"friend_requests_in": id},
				bson.M{"friend_requests_out": id},
			}},
			bson.M{"$pull": bson.M{
				"friends":             id,
				"friend_requests_in":  id,
				"friend_requests_out": id,
			}},
		); err != nil {
			return fmt.Errorf("detach user references: %w", err)
		}

		res, err := r.users.DeleteOne(sc, bson.M{"_id": id})
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if res.DeletedCount == 0 {
			return ErrNotFound
		}

		if _, err := sessions.DeleteMany(sc, bson.M{"user_id": id}); err != nil {
			return fmt.Errorf("delete user sessions: %w", err)
		}
		return nil
	})
}

func (r *MongoUserRepository) inTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start mongo session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// MongoSessionStore persists refresh tokens in MongoDB.
type MongoSessionStore struct {
	sessions *mongo.Collection
}

type mongoSession struct {
	RefreshToken string    `bson:"_id"`
	UserID       string    `bson:"user_id"`
	ExpiresAt    time.Time `bson:"expires_at"`
}

// NewMongoSessionStore constructs a session store backed by MongoDB.
func NewMongoSessionStore(client *mongo.Client, database string) *MongoSessionStore {
	return &MongoSessionStore{sessions: client.Database(database).Collection(sessionsCollection)}
}

// Save stores or updates a session record.
func (s *MongoSessionStore) Save(ctx context.Context, session auth.Session) error {
	doc := mongoSession{
		RefreshToken: session.RefreshToken,
		UserID:       session.UserID,
		ExpiresAt:    session.ExpiresAt.UTC(),
	}
	_, err := s.sessions.ReplaceOne(ctx, bson.M{"_id": doc.RefreshToken}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Find loads a session by its refresh token.
func (s *MongoSessionStore) Find(ctx context.Context, refreshToken string) (auth.Session, error) {
	var doc mongoSession
	if err := s.sessions.FindOne(ctx, bson.M{"_id": refreshToken}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return auth.Session{}, auth.ErrSessionNotFound
		}
		return auth.Session{}, fmt.Errorf("find session: %w", err)
	}
	return auth.Session{
		RefreshToken: doc.RefreshToken,
		UserID:       doc.UserID,
		ExpiresAt:    doc.ExpiresAt.UTC(),
	}, nil
}

// Delete removes a session by its refresh token.
func (s *MongoSessionStore) Delete(ctx context.Context, refreshToken string) error {
	res, err := s.sessions.DeleteOne(ctx, bson.M{"_id": refreshToken})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if res.DeletedCount == 0 {
		return auth.ErrSessionNotFound
	}
	return nil
}

var _ UserRepository = (*MongoUserRepository)(nil)
var _ auth.SessionStore = (*MongoSessionStore)(nil)
