package db

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/branchcast/internal/model"
)

// inserts new user into table, returns new user ID.
func (s *pgStore) CreateUser(ctx context.Context, email, hashedPassword string, name *string) (int, error) {
	const q = `
	INSERT INTO users (email, hashed_password, name, created_at, updated_at)
	VALUES ($1, $2, $3, now(), now())
	RETURNING id;`

	var newID int
	if err := s.db.QueryRowxContext(ctx, q, email, hashedPassword, name).Scan(&newID); err != nil {
		log.Error().Err(err).Msg("[db] CreateUser: failed to insert user")
		return 0, translate(err)
	}
	return newID, nil
}

// fetches user by email. returns ErrNotFound if missing.
func (s *pgStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	const q = `
	SELECT id, email, hashed_password, name, created_at, updated_at
	FROM users
	WHERE email = $1;`

	if err := s.db.GetContext(ctx, &u, q, email); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *pgStore) GetUserByID(ctx context.Context, id int) (*model.User, error) {
	var u model.User
	const q = `
	SELECT id, email, hashed_password, name, created_at, updated_at
	FROM users
	WHERE id = $1;`

	if err := s.db.GetContext(ctx, &u, q, id); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// updates a user's email and name, and bumps updated_at.
func (s *pgStore) UpdateUserProfile(ctx context.Context, id int, email string, name *string) error {
	const q = `
	UPDATE users
	SET email = $2,
	name = $3,
	updated_at = now()
	WHERE id = $1;`

	res, err := s.db.ExecContext(ctx, q, id, email, name)
	if err != nil {
		log.Error().Err(err).Int("user_id", id).Msg("[db] UpdateUserProfile: exec failed")
		return translate(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
