// Package playback owns the per-branch "now playing" pointer and the live
// queue behind it. Every transition runs under the branch's playback row lock
// held by the repository.
package playback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/branchcast/internal/db"
	"github.com/Nixie-Tech-LLC/branchcast/internal/model"
)

// Repository is the slice of db.Store the state machine needs.
type Repository interface {
	GetBranchByID(ctx context.Context, id int) (model.Branch, error)
	GetBranchByCode(ctx context.Context, code string) (model.Branch, error)
	TouchBranchLastSeen(ctx context.Context, id int) error
	ExistingVideoIDs(ctx context.Context, ids []int) (map[int]bool, error)

	WithPlayback(ctx context.Context, branchID int, create bool, fn func(db.PlaybackTx) error) error
	ListBranchPlaybacks(ctx context.Context) ([]model.BranchPlayback, error)
	GetBranchPlayback(ctx context.Context, branchID int) (model.BranchPlayback, error)
	ListQueueEntries(ctx context.Context, branchID *int) ([]model.QueueEntry, error)
}

type EventKind string

const (
	EventSeeded    EventKind = "seeded"
	EventAdvanced  EventKind = "advanced"
	EventReported  EventKind = "reported"
	EventHeartbeat EventKind = "heartbeat"
	EventCatalog   EventKind = "catalog"
	EventVideo     EventKind = "video"
	EventBranch    EventKind = "branch"
)

// Event describes a change to a branch's playback or catalog.
type Event struct {
	Kind       EventKind `json:"kind"`
	BranchID   int       `json:"branch_id"`
	BranchCode string    `json:"branch_code"`
	NowVideoID *int      `json:"now_video_id,omitempty"`
	Queue      []int     `json:"queue,omitempty"`
	At         time.Time `json:"at"`
}

// Notifier receives events after the change is committed. Errors are logged
// and never undo the change.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

type Service struct {
	repo      Repository
	notifiers []Notifier
	now       func() time.Time
}

func NewService(repo Repository, notifiers ...Notifier) *Service {
	return &Service{repo: repo, notifiers: notifiers, now: time.Now}
}

// AdvanceResult is the state left behind by Advance.
type AdvanceResult struct {
	NowPlaying *VideoRef  `json:"now_playing"`
	Queue      []VideoRef `json:"queue"`
	Empty      bool       `json:"empty"`
}

// SetQueue seeds the branch's playback: now playing becomes nowVideoID and
// the queue is replaced by queue, in order.
func (s *Service) SetQueue(ctx context.Context, branchID int, nowVideoID *int, queue []int) (BranchStatus, error) {
	branch, err := s.branchByID(ctx, branchID)
	if err != nil {
		return BranchStatus{}, err
	}
	if err := s.validateSeed(ctx, nowVideoID, queue); err != nil {
		return BranchStatus{}, err
	}

	at := s.now()
	err = s.repo.WithPlayback(ctx, branch.ID, true, func(tx db.PlaybackTx) error {
		if err := tx.SetNowPlaying(nowVideoID, at); err != nil {
			return vanishedVideo(err, "now_video_id")
		}
		if err := tx.ClearQueue(); err != nil {
			return err
		}
		return vanishedVideo(tx.AppendQueue(queue, at), "queue")
	})
	if err != nil {
		return BranchStatus{}, s.mapErr(err, ErrBranchNotFound)
	}

	transitionsTotal.WithLabelValues(string(EventSeeded)).Inc()
	log.Info().Int("branch_id", branch.ID).Int("queue_len", len(queue)).Msg("[playback] queue seeded")
	s.Publish(ctx, Event{Kind: EventSeeded, BranchID: branch.ID, BranchCode: branch.Code, NowVideoID: nowVideoID, Queue: queue, At: at})

	return s.StatusByBranchID(ctx, branch.ID)
}

func (s *Service) validateSeed(ctx context.Context, nowVideoID *int, queue []int) error {
	ids := append([]int(nil), queue...)
	if nowVideoID != nil {
		ids = append(ids, *nowVideoID)
	}
	known, err := s.repo.ExistingVideoIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("lookup videos: %w", err)
	}
	if nowVideoID != nil && !known[*nowVideoID] {
		return unknownVideo("now_video_id")
	}
	for i, id := range queue {
		if !known[id] {
			return unknownVideo(fmt.Sprintf("queue[%d]", i))
		}
	}
	return nil
}

// Advance pops the queue head into now playing. On an empty queue now
// playing is cleared and the result is marked Empty.
func (s *Service) Advance(ctx context.Context, branchID int) (AdvanceResult, error) {
	branch, err := s.branchByID(ctx, branchID)
	if err != nil {
		return AdvanceResult{}, err
	}

	var (
		at    = s.now()
		empty bool
		now   *int
		rest  []int
	)
	err = s.repo.WithPlayback(ctx, branch.ID, false, func(tx db.PlaybackTx) error {
		queue, err := tx.Queue()
		if err != nil {
			return err
		}
		if len(queue) == 0 {
			empty = true
			return tx.ClearNowPlaying()
		}

		head := queue[0]
		now = &head.VideoID
		for _, item := range queue[1:] {
			rest = append(rest, item.VideoID)
		}
		if err := tx.SetNowPlaying(now, at); err != nil {
			return vanishedVideo(err, "queue[0]")
		}
		if err := tx.RemoveQueueItems(head.ID); err != nil {
			return err
		}
		return tx.ReindexQueue()
	})
	if err != nil {
		return AdvanceResult{}, s.mapErr(err, ErrPlaybackNotFound)
	}

	transitionsTotal.WithLabelValues(string(EventAdvanced)).Inc()
	log.Info().Int("branch_id", branch.ID).Bool("empty", empty).Msg("[playback] advanced")
	s.Publish(ctx, Event{Kind: EventAdvanced, BranchID: branch.ID, BranchCode: branch.Code, NowVideoID: now, Queue: rest, At: at})

	status, err := s.StatusByBranchID(ctx, branch.ID)
	if err != nil {
		return AdvanceResult{}, err
	}
	return AdvanceResult{NowPlaying: status.NowPlaying, Queue: status.Queue, Empty: empty}, nil
}

// ReportNowPlaying reconciles the branch's state with what its terminal
// says it started. The reported video leaves the queue (head or not) and
// becomes now playing. Repeating a report changes nothing further.
func (s *Service) ReportNowPlaying(ctx context.Context, code string, videoID int) (BranchStatus, error) {
	branch, err := s.branchByCode(ctx, code)
	if err != nil {
		return BranchStatus{}, err
	}
	known, err := s.repo.ExistingVideoIDs(ctx, []int{videoID})
	if err != nil {
		return BranchStatus{}, fmt.Errorf("lookup videos: %w", err)
	}
	if !known[videoID] {
		return BranchStatus{}, unknownVideo("video_id")
	}

	var (
		at      = s.now()
		changed bool
		rest    []int
	)
	err = s.repo.WithPlayback(ctx, branch.ID, true, func(tx db.PlaybackTx) error {
		queue, err := tx.Queue()
		if err != nil {
			return err
		}

		var drop []int
		for _, item := range queue {
			if item.VideoID == videoID {
				drop = append(drop, item.ID)
				continue
			}
			rest = append(rest, item.VideoID)
		}
		if len(drop) > 0 {
			changed = true
			if err := tx.RemoveQueueItems(drop...); err != nil {
				return err
			}
			if err := tx.ReindexQueue(); err != nil {
				return err
			}
		}

		cur := tx.State().NowVideoID
		if cur == nil || *cur != videoID {
			changed = true
			return vanishedVideo(tx.SetNowPlaying(&videoID, at), "video_id")
		}
		return nil
	})
	if err != nil {
		return BranchStatus{}, s.mapErr(err, ErrBranchNotFound)
	}

	s.touch(ctx, branch)
	if changed {
		transitionsTotal.WithLabelValues(string(EventReported)).Inc()
		log.Info().Int("branch_id", branch.ID).Int("video_id", videoID).Msg("[playback] now playing reported")
		s.Publish(ctx, Event{Kind: EventReported, BranchID: branch.ID, BranchCode: branch.Code, NowVideoID: &videoID, Queue: rest, At: at})
	}
	return s.StatusByBranchID(ctx, branch.ID)
}

// Heartbeat refreshes started_at and, when videoID is given, now playing.
// The queue is never touched. started_at is stamped even when nothing is
// playing.
func (s *Service) Heartbeat(ctx context.Context, code string, videoID *int) (BranchStatus, error) {
	branch, err := s.branchByCode(ctx, code)
	if err != nil {
		return BranchStatus{}, err
	}
	if videoID != nil {
		known, err := s.repo.ExistingVideoIDs(ctx, []int{*videoID})
		if err != nil {
			return BranchStatus{}, fmt.Errorf("lookup videos: %w", err)
		}
		if !known[*videoID] {
			return BranchStatus{}, unknownVideo("video_id")
		}
	}

	var (
		at      = s.now()
		changed bool
		now     *int
	)
	err = s.repo.WithPlayback(ctx, branch.ID, true, func(tx db.PlaybackTx) error {
		now = tx.State().NowVideoID
		if videoID != nil {
			changed = now == nil || *now != *videoID
			now = videoID
		}
		return vanishedVideo(tx.SetNowPlaying(now, at), "video_id")
	})
	if err != nil {
		return BranchStatus{}, s.mapErr(err, ErrBranchNotFound)
	}

	s.touch(ctx, branch)
	transitionsTotal.WithLabelValues(string(EventHeartbeat)).Inc()
	log.Debug().Int("branch_id", branch.ID).Msg("[playback] heartbeat")
	if changed {
		s.Publish(ctx, Event{Kind: EventHeartbeat, BranchID: branch.ID, BranchCode: branch.Code, NowVideoID: now, At: at})
	}
	return s.StatusByBranchID(ctx, branch.ID)
}

// NotifyBranches publishes kind for every listed branch. Branches that no
// longer exist are skipped.
func (s *Service) NotifyBranches(ctx context.Context, kind EventKind, branchIDs ...int) {
	at := s.now()
	for _, id := range branchIDs {
		b, err := s.repo.GetBranchByID(ctx, id)
		if err != nil {
			log.Warn().Err(err).Int("branch_id", id).Msg("[playback] skip notify for unknown branch")
			continue
		}
		s.Publish(ctx, Event{Kind: kind, BranchID: b.ID, BranchCode: b.Code, At: at})
	}
}

// Publish hands ev to every notifier.
func (s *Service) Publish(ctx context.Context, ev Event) {
	for _, n := range s.notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			notifyFailures.WithLabelValues(fmt.Sprintf("%T", n)).Inc()
			log.Warn().Err(err).
				Int("branch_id", ev.BranchID).
				Str("kind", string(ev.Kind)).
				Msgf("[playback] notifier %T failed", n)
		}
	}
}

func (s *Service) touch(ctx context.Context, b model.Branch) {
	if err := s.repo.TouchBranchLastSeen(ctx, b.ID); err != nil {
		log.Warn().Err(err).Int("branch_id", b.ID).Msg("[playback] failed to touch last_seen_at")
	}
}

func (s *Service) branchByID(ctx context.Context, id int) (model.Branch, error) {
	b, err := s.repo.GetBranchByID(ctx, id)
	if err != nil {
		return model.Branch{}, s.mapErr(err, ErrBranchNotFound)
	}
	return b, nil
}

func (s *Service) branchByCode(ctx context.Context, code string) (model.Branch, error) {
	b, err := s.repo.GetBranchByCode(ctx, code)
	if err != nil {
		return model.Branch{}, s.mapErr(err, ErrBranchNotFound)
	}
	return b, nil
}

// vanishedVideo reports a video deleted between validation and the write as
// a validation failure on field.
func vanishedVideo(err error, field string) error {
	if errors.Is(err, db.ErrVideoNotFound) {
		return unknownVideo(field)
	}
	return err
}

// mapErr turns a store miss into notFound and wraps anything else.
func (s *Service) mapErr(err, notFound error) error {
	if errors.Is(err, db.ErrNotFound) {
		return notFound
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return err
	}
	return fmt.Errorf("playback: %w", err)
}
