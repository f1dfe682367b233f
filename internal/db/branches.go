package db

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/branchcast/internal/model"
)

const branchColumns = `id, name, code, login_user, login_password, last_seen_at, created_at, updated_at`

func (s *pgStore) CreateBranch(ctx context.Context, name, code string) (model.Branch, error) {
	var b model.Branch
	q := `
	INSERT INTO branches (name, code, created_at, updated_at)
	VALUES ($1, $2, now(), now())
	RETURNING ` + branchColumns + `;`
	if err := s.db.GetContext(ctx, &b, q, name, code); err != nil {
		log.Error().Err(err).Str("code", code).Msg("[db] CreateBranch: failed to insert branch")
		return model.Branch{}, translate(err)
	}
	return b, nil
}

func (s *pgStore) GetBranchByID(ctx context.Context, id int) (model.Branch, error) {
	var b model.Branch
	if err := s.db.GetContext(ctx, &b, `SELECT `+branchColumns+` FROM branches WHERE id = $1;`, id); err != nil {
		return model.Branch{}, translate(err)
	}
	return b, nil
}

func (s *pgStore) GetBranchByCode(ctx context.Context, code string) (model.Branch, error) {
	var b model.Branch
	if err := s.db.GetContext(ctx, &b, `SELECT `+branchColumns+` FROM branches WHERE code = $1;`, code); err != nil {
		return model.Branch{}, translate(err)
	}
	return b, nil
}

// FindBranchByLogin matches login_user first and falls back to code, both
// case-insensitively.
func (s *pgStore) FindBranchByLogin(ctx context.Context, login string) (model.Branch, error) {
	var b model.Branch
	login = strings.ToLower(strings.TrimSpace(login))
	q := `
	SELECT ` + branchColumns + `
	  FROM branches
	 WHERE LOWER(login_user) = $1 OR LOWER(code) = $1
	 ORDER BY (LOWER(login_user) = $1) DESC NULLS LAST, id
	 LIMIT 1;`
	if err := s.db.GetContext(ctx, &b, q, login); err != nil {
		return model.Branch{}, translate(err)
	}
	return b, nil
}

func (s *pgStore) ListBranches(ctx context.Context) ([]model.BranchSummary, error) {
	var out []model.BranchSummary
	const q = `
	SELECT b.id, b.name, b.code, b.login_user, b.login_password, b.last_seen_at, b.created_at, b.updated_at,
	       COUNT(bv.video_id) AS video_count
	  FROM branches b
	  LEFT JOIN branch_video bv ON bv.branch_id = b.id
	 GROUP BY b.id
	 ORDER BY b.name, b.id;`
	if err := s.db.SelectContext(ctx, &out, q); err != nil {
		log.Error().Err(err).Msg("[db] ListBranches: failed to select branches")
		return nil, err
	}
	return out, nil
}

func (s *pgStore) UpdateBranch(ctx context.Context, id int, name, code string) (model.Branch, error) {
	var b model.Branch
	q := `
	UPDATE branches
	SET name = $2,
	code = $3,
	updated_at = now()
	WHERE id = $1
	RETURNING ` + branchColumns + `;`
	if err := s.db.GetContext(ctx, &b, q, id, name, code); err != nil {
		return model.Branch{}, translate(err)
	}
	return b, nil
}

// UpdateBranchCredentials overwrites login_user (nil clears it) and, when
// passwordHash is non-nil, the stored password hash.
func (s *pgStore) UpdateBranchCredentials(ctx context.Context, id int, loginUser *string, passwordHash *string) (model.Branch, error) {
	var b model.Branch
	q := `
	UPDATE branches
	SET login_user = $2,
	login_password = COALESCE($3, login_password),
	updated_at = now()
	WHERE id = $1
	RETURNING ` + branchColumns + `;`
	if err := s.db.GetContext(ctx, &b, q, id, loginUser, passwordHash); err != nil {
		return model.Branch{}, translate(err)
	}
	return b, nil
}

// DeleteBranch removes the branch; assignments and playback state cascade.
func (s *pgStore) DeleteBranch(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM branches WHERE id = $1;`, id)
	if err != nil {
		log.Error().Err(err).Int("branch_id", id).Msg("[db] DeleteBranch: failed")
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgStore) TouchBranchLastSeen(ctx context.Context, id int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE branches SET last_seen_at = now() WHERE id = $1;`, id)
	return err
}
