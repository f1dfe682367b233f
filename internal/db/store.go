// exposes a Store interface that is passed to API calls w/ param requirements
package db

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Nixie-Tech-LLC/branchcast/internal/model"
)

type Store interface {
	// user functions
	CreateUser(ctx context.Context, email, hashedPassword string, name *string) (int, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id int) (*model.User, error)
	UpdateUserProfile(ctx context.Context, id int, email string, name *string) error

	// video functions
	CreateVideo(ctx context.Context, title, url string) (model.Video, error)
	GetVideoByID(ctx context.Context, id int) (model.Video, error)
	ListVideos(ctx context.Context) ([]model.Video, error)
	ListVideoBranches(ctx context.Context) ([]model.VideoBranch, error)
	RenameVideo(ctx context.Context, id int, title string) (model.Video, error)
	DeleteVideo(ctx context.Context, id int) (model.Video, []int, error)
	ExistingVideoIDs(ctx context.Context, ids []int) (map[int]bool, error)
	PlaybackBranchesForVideo(ctx context.Context, videoID int) ([]int, error)

	// branch functions
	CreateBranch(ctx context.Context, name, code string) (model.Branch, error)
	GetBranchByID(ctx context.Context, id int) (model.Branch, error)
	GetBranchByCode(ctx context.Context, code string) (model.Branch, error)
	FindBranchByLogin(ctx context.Context, login string) (model.Branch, error)
	ListBranches(ctx context.Context) ([]model.BranchSummary, error)
	UpdateBranch(ctx context.Context, id int, name, code string) (model.Branch, error)
	UpdateBranchCredentials(ctx context.Context, id int, loginUser *string, passwordHash *string) (model.Branch, error)
	DeleteBranch(ctx context.Context, id int) error
	TouchBranchLastSeen(ctx context.Context, id int) error

	// catalog (branch <-> video assignment) functions
	SetCatalog(ctx context.Context, branchID int, videoIDs []int) ([]model.CatalogEntry, error)
	ClearCatalog(ctx context.Context, branchID int) error
	DetachVideo(ctx context.Context, branchID, videoID int) error
	ListCatalog(ctx context.Context, branchID int) ([]model.CatalogEntry, error)

	// playback functions
	WithPlayback(ctx context.Context, branchID int, create bool, fn func(PlaybackTx) error) error
	ListBranchPlaybacks(ctx context.Context) ([]model.BranchPlayback, error)
	GetBranchPlayback(ctx context.Context, branchID int) (model.BranchPlayback, error)
	ListQueueEntries(ctx context.Context, branchID *int) ([]model.QueueEntry, error)
}

// PlaybackTx is a branch's playback state held under its row lock.
// Every method runs inside the transaction opened by WithPlayback.
type PlaybackTx interface {
	State() model.PlaybackState
	Queue() ([]model.QueueItem, error)
	SetNowPlaying(videoID *int, startedAt time.Time) error
	ClearNowPlaying() error
	ClearQueue() error
	AppendQueue(videoIDs []int, addedAt time.Time) error
	RemoveQueueItems(itemIDs ...int) error
	ReindexQueue() error
}

type pgStore struct {
	db *sqlx.DB
}

// compile-time check that pgStore implements Store
var _ Store = (*pgStore)(nil)

func NewStore(conn *sqlx.DB) Store {
	return &pgStore{db: conn}
}

// inTx runs fn in a transaction, committing on success and rolling back otherwise.
func (s *pgStore) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
