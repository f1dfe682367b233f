package db

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/branchcast/internal/model"
)

// @ CATALOG

// SetCatalog replaces the branch's assigned videos with videoIDs, in order.
// Duplicates and ids with no stored video are dropped. Positions are
// rewritten to 1..n. Playback state is left untouched.
func (s *pgStore) SetCatalog(ctx context.Context, branchID int, videoIDs []int) ([]model.CatalogEntry, error) {
	var out []model.CatalogEntry
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var id int
		if err := tx.GetContext(ctx, &id, `SELECT id FROM branches WHERE id = $1 FOR UPDATE;`, branchID); err != nil {
			return translate(err)
		}

		var existing []int
		if len(videoIDs) > 0 {
			if err := tx.SelectContext(ctx, &existing,
				`SELECT id FROM videos WHERE id = ANY($1);`, pq.Array(int64s(videoIDs))); err != nil {
				return err
			}
		}
		ids := normalizeCatalogIDs(videoIDs, existing)

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM branch_video WHERE branch_id = $1 AND NOT (video_id = ANY($2));`,
			branchID, pq.Array(int64s(ids))); err != nil {
			return err
		}
		if len(ids) > 0 {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO branch_video (branch_id, video_id, position, created_at, updated_at)
				SELECT $1, t.v, t.ord, now(), now()
				  FROM unnest($2::int[]) WITH ORDINALITY AS t(v, ord)
				ON CONFLICT (branch_id, video_id)
				DO UPDATE SET position = EXCLUDED.position, updated_at = now();`,
				branchID, pq.Array(int64s(ids))); err != nil {
				return err
			}
		}

		return tx.SelectContext(ctx, &out, catalogSelect, branchID)
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Error().Err(err).Int("branch_id", branchID).Msg("[db] SetCatalog: failed")
		}
		return nil, err
	}
	return out, nil
}

// normalizeCatalogIDs keeps the first occurrence of every requested id that
// is present in existing, preserving request order.
func normalizeCatalogIDs(requested, existing []int) []int {
	known := make(map[int]bool, len(existing))
	for _, id := range existing {
		known[id] = true
	}
	seen := make(map[int]bool, len(requested))
	out := make([]int, 0, len(requested))
	for _, id := range requested {
		if !known[id] || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (s *pgStore) ClearCatalog(ctx context.Context, branchID int) error {
	var id int
	if err := s.db.GetContext(ctx, &id, `SELECT id FROM branches WHERE id = $1;`, branchID); err != nil {
		return translate(err)
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM branch_video WHERE branch_id = $1;`, branchID)
	return err
}

// DetachVideo unassigns one video. Remaining positions keep their gaps.
func (s *pgStore) DetachVideo(ctx context.Context, branchID, videoID int) error {
	var id int
	if err := s.db.GetContext(ctx, &id, `SELECT id FROM branches WHERE id = $1;`, branchID); err != nil {
		return translate(err)
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM branch_video WHERE branch_id = $1 AND video_id = $2;`, branchID, videoID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const catalogSelect = `
SELECT bv.branch_id, bv.video_id, bv.position, v.title, v.url
  FROM branch_video bv
  JOIN videos v ON v.id = bv.video_id
 WHERE bv.branch_id = $1
 ORDER BY bv.position, bv.video_id;`

func (s *pgStore) ListCatalog(ctx context.Context, branchID int) ([]model.CatalogEntry, error) {
	var out []model.CatalogEntry
	if err := s.db.SelectContext(ctx, &out, catalogSelect, branchID); err != nil {
		log.Error().Err(err).Int("branch_id", branchID).Msg("[db] ListCatalog: failed")
		return nil, err
	}
	return out, nil
}
