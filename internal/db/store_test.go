package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/branchcast/internal/model"
)

func newMockStore(t *testing.T) (*pgStore, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &pgStore{db: sqlx.NewDb(conn, "postgres")}, mock
}

var playbackCols = []string{"id", "branch_id", "now_video_id", "started_at", "created_at", "updated_at"}

func TestWithPlayback_CreatesLocksAndCommits(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO branch_playbacks .* ON CONFLICT \(branch_id\) DO NOTHING`).
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .* FROM branch_playbacks WHERE branch_id = \$1 FOR UPDATE`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(playbackCols).AddRow(3, 7, nil, nil, now, now))
	mock.ExpectExec(`UPDATE branch_queue_items q`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	var seen int
	err := s.WithPlayback(context.Background(), 7, true, func(tx PlaybackTx) error {
		seen = tx.State().ID
		return tx.ReindexQueue()
	})
	require.NoError(t, err)
	assert.Equal(t, 3, seen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithPlayback_MissingStateWithoutCreate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM branch_playbacks WHERE branch_id = \$1 FOR UPDATE`).
		WithArgs(7).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	called := false
	err := s.WithPlayback(context.Background(), 7, false, func(PlaybackTx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithPlayback_UnknownBranchIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO branch_playbacks`).
		WithArgs(99).
		WillReturnError(&pq.Error{Code: "23503"})
	mock.ExpectRollback()

	err := s.WithPlayback(context.Background(), 99, true, func(PlaybackTx) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithPlayback_RollsBackOnCallbackError(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(playbackCols).AddRow(3, 7, 11, now, now, now))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := s.WithPlayback(context.Background(), 7, false, func(PlaybackTx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaybackTx_AppendQueueContinuesAfterTail(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(playbackCols).AddRow(3, 7, nil, nil, now, now))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\("order"\), 0\) FROM branch_queue_items`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(2))
	mock.ExpectExec(`INSERT INTO branch_queue_items .* WITH ORDINALITY`).
		WithArgs(3, sqlmock.AnyArg(), 2, now).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := s.WithPlayback(context.Background(), 7, false, func(tx PlaybackTx) error {
		return tx.AppendQueue([]int{5, 6}, now)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaybackTx_SetNowPlayingStampsStartedAtWithoutVideo(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(playbackCols).AddRow(3, 7, 11, nil, now, now))
	mock.ExpectQuery(`UPDATE branch_playbacks\s+SET now_video_id = \$2,\s+started_at = \$3`).
		WithArgs(3, nil, now).
		WillReturnRows(sqlmock.NewRows(playbackCols).AddRow(3, 7, nil, now, now, now))
	mock.ExpectCommit()

	var after model.PlaybackState
	err := s.WithPlayback(context.Background(), 7, false, func(tx PlaybackTx) error {
		if err := tx.SetNowPlaying(nil, now); err != nil {
			return err
		}
		after = tx.State()
		return nil
	})
	require.NoError(t, err)
	assert.Nil(t, after.NowVideoID)
	require.NotNil(t, after.StartedAt)
	assert.True(t, now.Equal(*after.StartedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaybackTx_ClearNowPlayingKeepsStartedAt(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(playbackCols).AddRow(3, 7, 11, now, now, now))
	mock.ExpectQuery(`UPDATE branch_playbacks\s+SET now_video_id = NULL,\s+updated_at = now\(\)`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(playbackCols).AddRow(3, 7, nil, now, now, now))
	mock.ExpectCommit()

	err := s.WithPlayback(context.Background(), 7, false, func(tx PlaybackTx) error {
		return tx.ClearNowPlaying()
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaybackTx_DeletedVideoIsVideoNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(playbackCols).AddRow(3, 7, nil, nil, now, now))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\("order"\), 0\)`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO branch_queue_items`).
		WillReturnError(&pq.Error{Code: "23503", Constraint: "branch_queue_items_video_id_fkey"})
	mock.ExpectRollback()

	err := s.WithPlayback(context.Background(), 7, false, func(tx PlaybackTx) error {
		return tx.AppendQueue([]int{5}, now)
	})
	assert.ErrorIs(t, err, ErrVideoNotFound)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaybackBranchesForVideo(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT bp.branch_id\s+FROM branch_playbacks bp\s+WHERE bp.now_video_id = \$1`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"branch_id"}).AddRow(2).AddRow(9))

	branches, err := s.PlaybackBranchesForVideo(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 9}, branches)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteVideo_ReindexesAffectedQueues(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM videos WHERE id = \$1 FOR UPDATE`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "url", "created_at", "updated_at"}).
			AddRow(5, "Promo", "/uploads/promo.mp4", now, now))
	mock.ExpectQuery(`SELECT bp.id\s+FROM branch_playbacks bp`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3).AddRow(4))
	mock.ExpectExec(`DELETE FROM videos WHERE id = \$1`).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE branch_queue_items q`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectQuery(`SELECT branch_id FROM branch_playbacks WHERE id = ANY`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"branch_id"}).AddRow(7).AddRow(8))
	mock.ExpectCommit()

	v, branches, err := s.DeleteVideo(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "Promo", v.Title)
	assert.Equal(t, []int{7, 8}, branches)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetCatalog_ReplacesPairsInOneTransaction(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM branches WHERE id = \$1 FOR UPDATE`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery(`SELECT id FROM videos WHERE id = ANY`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(3))
	mock.ExpectExec(`DELETE FROM branch_video WHERE branch_id = \$1 AND NOT`).
		WithArgs(7, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO branch_video .* ON CONFLICT \(branch_id, video_id\)`).
		WithArgs(7, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(`FROM branch_video bv\s+JOIN videos v`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"branch_id", "video_id", "position", "title", "url"}).
			AddRow(7, 3, 1, "C", "/c.mp4").
			AddRow(7, 1, 2, "A", "/a.mp4"))
	mock.ExpectCommit()

	out, err := s.SetCatalog(context.Background(), 7, []int{3, 1, 42})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 3, out[0].VideoID)
	assert.Equal(t, 1, out[0].Position)
	assert.Equal(t, 1, out[1].VideoID)
	assert.Equal(t, 2, out[1].Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetCatalog_UnknownBranch(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM branches WHERE id = \$1 FOR UPDATE`).
		WithArgs(7).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := s.SetCatalog(context.Background(), 7, []int{1})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDetachVideo_MissingPair(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id FROM branches WHERE id = \$1`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec(`DELETE FROM branch_video WHERE branch_id = \$1 AND video_id = \$2`).
		WithArgs(7, 9).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.DetachVideo(context.Background(), 7, 9)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNormalizeCatalogIDs(t *testing.T) {
	cases := []struct {
		name      string
		requested []int
		existing  []int
		want      []int
	}{
		{"keeps order", []int{3, 1}, []int{1, 2, 3}, []int{3, 1}},
		{"drops unknown", []int{3, 42, 1}, []int{1, 3}, []int{3, 1}},
		{"first occurrence wins", []int{2, 1, 2}, []int{1, 2}, []int{2, 1}},
		{"empty", nil, nil, []int{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, normalizeCatalogIDs(tc.requested, tc.existing))
		})
	}
}

func TestTranslate(t *testing.T) {
	assert.Nil(t, translate(nil))
	assert.ErrorIs(t, translate(sql.ErrNoRows), ErrNotFound)

	err := translate(&pq.Error{Code: "23505", Constraint: "branches_code_key"})
	assert.ErrorIs(t, err, ErrDuplicate)
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "branches_code_key", dup.Constraint)

	other := errors.New("connection reset")
	assert.Equal(t, other, translate(other))
}
