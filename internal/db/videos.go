package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/branchcast/internal/model"
)

// @ VIDEO
func (s *pgStore) CreateVideo(ctx context.Context, title, url string) (model.Video, error) {
	var v model.Video
	const q = `
	INSERT INTO videos (title, url, created_at, updated_at)
	VALUES ($1, $2, now(), now())
	RETURNING id, title, url, created_at, updated_at;`

	if err := s.db.GetContext(ctx, &v, q, title, url); err != nil {
		log.Error().Err(err).Msg("[db] CreateVideo: failed to insert video")
		return model.Video{}, translate(err)
	}
	return v, nil
}

func (s *pgStore) GetVideoByID(ctx context.Context, id int) (model.Video, error) {
	var v model.Video
	const q = `SELECT id, title, url, created_at, updated_at FROM videos WHERE id = $1;`
	if err := s.db.GetContext(ctx, &v, q, id); err != nil {
		return model.Video{}, translate(err)
	}
	return v, nil
}

func (s *pgStore) ListVideos(ctx context.Context) ([]model.Video, error) {
	var out []model.Video
	const q = `SELECT id, title, url, created_at, updated_at FROM videos ORDER BY id;`
	if err := s.db.SelectContext(ctx, &out, q); err != nil {
		log.Error().Err(err).Msg("[db] ListVideos: failed to select videos")
		return nil, err
	}
	return out, nil
}

// ListVideoBranches returns every (video, branch) catalog pairing.
func (s *pgStore) ListVideoBranches(ctx context.Context) ([]model.VideoBranch, error) {
	var out []model.VideoBranch
	const q = `
	SELECT bv.video_id, b.id AS branch_id, b.name AS branch_name, b.code AS branch_code
	  FROM branch_video bv
	  JOIN branches b ON b.id = bv.branch_id
	 ORDER BY bv.video_id, b.name, b.id;`
	if err := s.db.SelectContext(ctx, &out, q); err != nil {
		log.Error().Err(err).Msg("[db] ListVideoBranches: failed to select pairings")
		return nil, err
	}
	return out, nil
}

func (s *pgStore) RenameVideo(ctx context.Context, id int, title string) (model.Video, error) {
	var v model.Video
	const q = `
	UPDATE videos
	SET title = $2,
	updated_at = now()
	WHERE id = $1
	RETURNING id, title, url, created_at, updated_at;`
	if err := s.db.GetContext(ctx, &v, q, id, title); err != nil {
		return model.Video{}, translate(err)
	}
	return v, nil
}

// DeleteVideo removes a video and every reference to it. Queues that lose an
// item are reindexed under their playback row lock. It returns the deleted
// video and the ids of branches whose playback state changed.
func (s *pgStore) DeleteVideo(ctx context.Context, id int) (model.Video, []int, error) {
	var (
		v        model.Video
		branches []int
	)
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &v,
			`SELECT id, title, url, created_at, updated_at FROM videos WHERE id = $1 FOR UPDATE;`, id); err != nil {
			return translate(err)
		}

		// lock in id order so concurrent deletes cannot deadlock
		var playbackIDs []int
		if err := tx.SelectContext(ctx, &playbackIDs, `
			SELECT bp.id
			  FROM branch_playbacks bp
			 WHERE bp.now_video_id = $1
			    OR EXISTS (SELECT 1 FROM branch_queue_items q
			                WHERE q.branch_playback_id = bp.id AND q.video_id = $1)
			 ORDER BY bp.id
			   FOR UPDATE;`, id); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM videos WHERE id = $1;`, id); err != nil {
			return err
		}

		if len(playbackIDs) == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, reindexQueuesSQL, pq.Array(int64s(playbackIDs))); err != nil {
			return fmt.Errorf("reindex queues: %w", err)
		}
		return tx.SelectContext(ctx, &branches,
			`SELECT branch_id FROM branch_playbacks WHERE id = ANY($1) ORDER BY branch_id;`, pq.Array(int64s(playbackIDs)))
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Error().Err(err).Int("video_id", id).Msg("[db] DeleteVideo: failed")
		}
		return model.Video{}, nil, err
	}
	return v, branches, nil
}

// ExistingVideoIDs reports which of ids reference a stored video.
func (s *pgStore) ExistingVideoIDs(ctx context.Context, ids []int) (map[int]bool, error) {
	found := make(map[int]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	var rows []int
	if err := s.db.SelectContext(ctx, &rows, `SELECT id FROM videos WHERE id = ANY($1);`, pq.Array(int64s(ids))); err != nil {
		return nil, err
	}
	for _, id := range rows {
		found[id] = true
	}
	return found, nil
}

// PlaybackBranchesForVideo lists the branches whose now playing or live
// queue references videoID.
func (s *pgStore) PlaybackBranchesForVideo(ctx context.Context, videoID int) ([]int, error) {
	var branches []int
	err := s.db.SelectContext(ctx, &branches, `
		SELECT bp.branch_id
		  FROM branch_playbacks bp
		 WHERE bp.now_video_id = $1
		    OR EXISTS (SELECT 1 FROM branch_queue_items q
		                WHERE q.branch_playback_id = bp.id AND q.video_id = $1)
		 ORDER BY bp.branch_id;`, videoID)
	if err != nil {
		log.Error().Err(err).Int("video_id", videoID).Msg("[db] PlaybackBranchesForVideo: failed")
		return nil, err
	}
	return branches, nil
}
