package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/branchcast/internal/model"
)

// reindexQueuesSQL rewrites "order" to 1..n within every listed playback,
// preserving relative order. The order unique constraint is deferred, so
// intermediate collisions are allowed until commit.
const reindexQueuesSQL = `
UPDATE branch_queue_items q
   SET "order" = r.rn
  FROM (SELECT id,
               ROW_NUMBER() OVER (PARTITION BY branch_playback_id ORDER BY "order", id) AS rn
          FROM branch_queue_items
         WHERE branch_playback_id = ANY($1)) r
 WHERE q.id = r.id
   AND q."order" <> r.rn;`

const playbackColumns = `id, branch_id, now_video_id, started_at, created_at, updated_at`

// @ PLAYBACK

// WithPlayback opens a transaction, locks the branch's playback row and runs
// fn against it. With create set, a missing row is inserted first; otherwise
// a missing row yields ErrNotFound. Callers for the same branch serialize on
// the row lock.
func (s *pgStore) WithPlayback(ctx context.Context, branchID int, create bool, fn func(PlaybackTx) error) error {
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if create {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO branch_playbacks (branch_id, created_at, updated_at)
				VALUES ($1, now(), now())
				ON CONFLICT (branch_id) DO NOTHING;`, branchID); err != nil {
				return translateFK(err)
			}
		}

		var st model.PlaybackState
		if err := tx.GetContext(ctx, &st,
			`SELECT `+playbackColumns+` FROM branch_playbacks WHERE branch_id = $1 FOR UPDATE;`, branchID); err != nil {
			return translate(err)
		}
		return fn(&pgPlaybackTx{ctx: ctx, tx: tx, state: st})
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		log.Error().Err(err).Int("branch_id", branchID).Msg("[db] WithPlayback: transaction failed")
	}
	return err
}

// translateFK reports a missing parent row as ErrNotFound.
func translateFK(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
		return ErrNotFound
	}
	return translate(err)
}

// translateVideoFK reports a dangling video reference as ErrVideoNotFound.
// The playback row is locked, so the video is the only parent that can vanish.
func translateVideoFK(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
		return ErrVideoNotFound
	}
	return err
}

type pgPlaybackTx struct {
	ctx   context.Context
	tx    *sqlx.Tx
	state model.PlaybackState
}

func (p *pgPlaybackTx) State() model.PlaybackState { return p.state }

func (p *pgPlaybackTx) Queue() ([]model.QueueItem, error) {
	var items []model.QueueItem
	err := p.tx.SelectContext(p.ctx, &items, `
		SELECT id, branch_playback_id, video_id, "order", added_at
		  FROM branch_queue_items
		 WHERE branch_playback_id = $1
		 ORDER BY "order", id;`, p.state.ID)
	return items, err
}

// SetNowPlaying points now playing at videoID (nil allowed) and stamps
// started_at.
func (p *pgPlaybackTx) SetNowPlaying(videoID *int, startedAt time.Time) error {
	var st model.PlaybackState
	err := p.tx.GetContext(p.ctx, &st, `
		UPDATE branch_playbacks
		SET now_video_id = $2,
		started_at = $3,
		updated_at = now()
		WHERE id = $1
		RETURNING `+playbackColumns+`;`, p.state.ID, videoID, startedAt)
	if err != nil {
		return translateVideoFK(err)
	}
	p.state = st
	return nil
}

// ClearNowPlaying empties now playing and leaves started_at as it was.
func (p *pgPlaybackTx) ClearNowPlaying() error {
	var st model.PlaybackState
	err := p.tx.GetContext(p.ctx, &st, `
		UPDATE branch_playbacks
		SET now_video_id = NULL,
		updated_at = now()
		WHERE id = $1
		RETURNING `+playbackColumns+`;`, p.state.ID)
	if err != nil {
		return err
	}
	p.state = st
	return nil
}

func (p *pgPlaybackTx) ClearQueue() error {
	_, err := p.tx.ExecContext(p.ctx, `DELETE FROM branch_queue_items WHERE branch_playback_id = $1;`, p.state.ID)
	return err
}

// AppendQueue adds videoIDs after the current tail, keeping their order.
func (p *pgPlaybackTx) AppendQueue(videoIDs []int, addedAt time.Time) error {
	if len(videoIDs) == 0 {
		return nil
	}
	var tail int
	if err := p.tx.GetContext(p.ctx, &tail,
		`SELECT COALESCE(MAX("order"), 0) FROM branch_queue_items WHERE branch_playback_id = $1;`, p.state.ID); err != nil {
		return err
	}
	_, err := p.tx.ExecContext(p.ctx, `
		INSERT INTO branch_queue_items (branch_playback_id, video_id, "order", added_at)
		SELECT $1, t.v, $3 + t.ord, $4
		  FROM unnest($2::int[]) WITH ORDINALITY AS t(v, ord);`,
		p.state.ID, pq.Array(int64s(videoIDs)), tail, addedAt)
	return translateVideoFK(err)
}

func (p *pgPlaybackTx) RemoveQueueItems(itemIDs ...int) error {
	if len(itemIDs) == 0 {
		return nil
	}
	_, err := p.tx.ExecContext(p.ctx,
		`DELETE FROM branch_queue_items WHERE branch_playback_id = $1 AND id = ANY($2);`,
		p.state.ID, pq.Array(int64s(itemIDs)))
	return err
}

func (p *pgPlaybackTx) ReindexQueue() error {
	_, err := p.tx.ExecContext(p.ctx, reindexQueuesSQL, pq.Array([]int64{int64(p.state.ID)}))
	return err
}

// @ READ MODELS

const branchPlaybackSelect = `
SELECT b.id AS branch_id, b.name AS branch_name, b.code AS branch_code,
       bp.id AS playback_id, bp.now_video_id, v.title AS now_title, bp.started_at
  FROM branches b
  LEFT JOIN branch_playbacks bp ON bp.branch_id = b.id
  LEFT JOIN videos v ON v.id = bp.now_video_id`

// ListBranchPlaybacks returns every branch, with or without playback state,
// ordered by name then id.
func (s *pgStore) ListBranchPlaybacks(ctx context.Context) ([]model.BranchPlayback, error) {
	var out []model.BranchPlayback
	if err := s.db.SelectContext(ctx, &out, branchPlaybackSelect+` ORDER BY b.name, b.id;`); err != nil {
		log.Error().Err(err).Msg("[db] ListBranchPlaybacks: failed to select roster")
		return nil, err
	}
	return out, nil
}

func (s *pgStore) GetBranchPlayback(ctx context.Context, branchID int) (model.BranchPlayback, error) {
	var out model.BranchPlayback
	if err := s.db.GetContext(ctx, &out, branchPlaybackSelect+` WHERE b.id = $1;`, branchID); err != nil {
		return model.BranchPlayback{}, translate(err)
	}
	return out, nil
}

// ListQueueEntries returns queue items joined with their titles, ordered by
// branch then queue order. A nil branchID lists every branch.
func (s *pgStore) ListQueueEntries(ctx context.Context, branchID *int) ([]model.QueueEntry, error) {
	var out []model.QueueEntry
	const q = `
	SELECT bp.branch_id, q."order", q.video_id, v.title
	  FROM branch_queue_items q
	  JOIN branch_playbacks bp ON bp.id = q.branch_playback_id
	  JOIN videos v ON v.id = q.video_id
	 WHERE ($1::int IS NULL OR bp.branch_id = $1)
	 ORDER BY bp.branch_id, q."order", q.id;`
	var arg sql.NullInt64
	if branchID != nil {
		arg = sql.NullInt64{Int64: int64(*branchID), Valid: true}
	}
	if err := s.db.SelectContext(ctx, &out, q, arg); err != nil {
		log.Error().Err(err).Msg("[db] ListQueueEntries: failed to select queue")
		return nil, err
	}
	return out, nil
}
