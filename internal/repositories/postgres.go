package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/friendbook/backend/internal/db"
	"github.com/friendbook/backend/internal/models"
)

const userColumns = `id, first_name, last_name, email, password_hash, bio, birthdate,
        profile_picture_url, profile_picture_type, banner_url, banner_type,
        friends, friend_requests_in, friend_requests_out, created_at, updated_at`

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
// Relationship sets live in array columns on the user row, so each user is a
// self-contained document.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	normalizeSets(&user)

	return withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, `
        INSERT INTO users (`+userColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
    `, user.ID, user.FirstName, user.LastName, user.Email, user.Password, user.Bio, user.Birthdate,
			user.ProfilePicture.URL, user.ProfilePicture.ContentType, user.Banner.URL, user.Banner.ContentType,
			user.Friends.Strings(), user.FriendRequestsIn.Strings(), user.FriendRequestsOut.Strings(),
			user.CreatedAt, user.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrConflict
			}
			return fmt.Errorf("insert user: %w", err)
		}
		return nil
	})
}

// FindByID fetches a user by identifier.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	var user models.User
	err := withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		var err error
		user, err = scanUser(conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		if err != nil {
			return fmt.Errorf("select user by id: %w", err)
		}
		return nil
	})
	return user, err
}

// FindByEmail fetches a user by their email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		var err error
		user, err = scanUser(conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
		if err != nil {
			return fmt.Errorf("select user by email: %w", err)
		}
		return nil
	})
	return user, err
}

// FindByIDs resolves identifiers to users, preserving the order of ids.
// Identifiers without a matching row are skipped.
func (r *PostgresUserRepository) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}

	var users []models.User
	err := withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		var err error
		users, err = queryUsers(ctx, conn, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, ids)
		return err
	})
	if err != nil {
		return nil, err
	}
	return orderByIDs(ids, users), nil
}

// ListExcluding returns every user whose id is not in exclude, oldest first.
func (r *PostgresUserRepository) ListExcluding(ctx context.Context, exclude []string) ([]models.User, error) {
	if exclude == nil {
		exclude = []string{}
	}

	var users []models.User
	err := withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		var err error
		users, err = queryUsers(ctx, conn, `
        SELECT `+userColumns+`
        FROM users
        WHERE NOT (id = ANY($1))
        ORDER BY created_at, id
    `, exclude)
		return err
	})
	return users, err
}

// UpdateProfile applies the non-nil fields of update.
func (r *PostgresUserRepository) UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) error {
	return withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, `
        UPDATE users
        SET first_name = COALESCE($2, first_name),
            last_name = COALESCE($3, last_name),
            bio = COALESCE($4, bio),
            updated_at = $5
        WHERE id = $1
    `, id, update.FirstName, update.LastName, update.Bio, update.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update user profile: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// SetMedia replaces the banner or profile picture reference of a user.
func (r *PostgresUserRepository) SetMedia(ctx context.Context, id string, kind models.MediaKind, image models.Image) error {
	var query string
	switch kind {
	case models.MediaBanner:
		query = `UPDATE users SET banner_url = $2, banner_type = $3, updated_at = NOW() WHERE id = $1`
	case models.MediaProfilePicture:
		query = `UPDATE users SET profile_picture_url = $2, profile_picture_type = $3, updated_at = NOW() WHERE id = $1`
	default:
		return fmt.Errorf("unknown media kind %q", kind)
	}

	return withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		tag, err := conn.Exec(ctx, query, id, image.URL, image.ContentType)
		if err != nil {
			return fmt.Errorf("update user %s: %w", kind, err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// UpdatePair locks both user rows, applies mutate and writes back the
// relationship sets of both users in a single transaction.
func (r *PostgresUserRepository) UpdatePair(ctx context.Context, aID, bID string, mutate PairMutator) error {
	if aID == bID {
		return fmt.Errorf("update pair: identical user ids %q", aID)
	}

	return withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		return db.RunInTx(ctx, conn, func(tx pgx.Tx) error {
			// Rows are locked in id order so concurrent pair updates cannot deadlock.
			locked, err := queryUsers(ctx, tx, `
        SELECT `+userColumns+`
        FROM users
        WHERE id = ANY($1)
        ORDER BY id
        FOR UPDATE
    `, []string{aID, bID})
			if err != nil {
				return err
			}

			byID := make(map[string]models.User, len(locked))
			for _, user := range locked {
				byID[user.ID] = user
			}
			a, okA := byID[aID]
			b, okB := byID[bID]
			if !okA || !okB {
				return ErrNotFound
			}

			if err := mutate(&a, &b); err != nil {
				return err
			}

			for _, user := range []*models.User{&a, &b} {
				normalizeSets(user)
				if _, err := tx.Exec(ctx, `
        UPDATE users
        SET friends = $2, friend_requests_in = $3, friend_requests_out = $4, updated_at = NOW()
        WHERE id = $1
    `, user.ID, user.Friends.Strings(), user.FriendRequestsIn.Strings(), user.FriendRequestsOut.Strings()); err != nil {
					return fmt.Errorf("update relationships for %s: %w", user.ID, err)
				}
			}
			return nil
		})
	})
}

// Delete removes a user and strips its id from every other user's
// relationship sets in the same transaction.
func (r *PostgresUserRepository) Delete(ctx context.Context, id string) error {
	return withConn(ctx, r.pool, func(conn *pgxpool.Conn) error {
		return db.RunInTx(ctx, conn, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `
        UPDATE users
        SET friends = array_remove(friends, $1),
            friend_requests_in = array_remove(friend_requests_in, $1),
            friend_requests_out = array_remove(friend_requests_out, $1),
            updated_at = NOW()
        WHERE $1 = ANY(friends) OR $1 = ANY(friend_requests_in) OR $1 = ANY(friend_requests_out)
    `, id); err != nil {
				return fmt.Errorf("detach user references: %w", err)
			}

			tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
			if err != nil {
				return fmt.Errorf("delete user: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return ErrNotFound
			}
			return nil
		})
	})
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryUsers(ctx context.Context, q querier, sql string, args ...any) ([]models.User, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var (
		user             models.User
		friends, in, out []string
	)

	err := row.Scan(
		&user.ID, &user.FirstName, &user.LastName, &user.Email, &user.Password, &user.Bio, &user.Birthdate,
		&user.ProfilePicture.URL, &user.ProfilePicture.ContentType, &user.Banner.URL, &user.Banner.ContentType,
		&friends, &in, &out, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}

	user.Friends = models.IDSet(friends)
	user.FriendRequestsIn = models.IDSet(in)
	user.FriendRequestsOut = models.IDSet(out)
	user.Birthdate = user.Birthdate.UTC()
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}

func withConn(ctx context.Context, pool db.Pool, fn func(*pgxpool.Conn) error) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return fn(conn)
}

var _ UserRepository = (*PostgresUserRepository)(nil)
