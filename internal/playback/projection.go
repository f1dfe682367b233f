package playback

import (
	"context"
	"fmt"

	"github.com/Nixie-Tech-LLC/branchcast/internal/model"
)

type BranchRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type VideoRef struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// BranchStatus is the read model terminals and the admin dashboard poll.
type BranchStatus struct {
	Branch     BranchRef  `json:"branch"`
	NowPlaying *VideoRef  `json:"now_playing"`
	Queue      []VideoRef `json:"queue"`
}

// StatusAll returns one entry per branch, ordered by name then id. Branches
// that never played anything report no now playing and an empty queue.
func (s *Service) StatusAll(ctx context.Context) ([]BranchStatus, error) {
	roster, err := s.repo.ListBranchPlaybacks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list branch playbacks: %w", err)
	}
	entries, err := s.repo.ListQueueEntries(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list queue entries: %w", err)
	}
	return buildStatuses(roster, entries), nil
}

func (s *Service) StatusByCode(ctx context.Context, code string) (BranchStatus, error) {
	b, err := s.branchByCode(ctx, code)
	if err != nil {
		return BranchStatus{}, err
	}
	return s.StatusByBranchID(ctx, b.ID)
}

func (s *Service) StatusByBranchID(ctx context.Context, branchID int) (BranchStatus, error) {
	row, err := s.repo.GetBranchPlayback(ctx, branchID)
	if err != nil {
		return BranchStatus{}, s.mapErr(err, ErrBranchNotFound)
	}
	entries, err := s.repo.ListQueueEntries(ctx, &branchID)
	if err != nil {
		return BranchStatus{}, fmt.Errorf("list queue entries: %w", err)
	}
	return buildStatuses([]model.BranchPlayback{row}, entries)[0], nil
}

// buildStatuses joins roster rows with queue entries. Entries must be
// ordered by branch then queue order. Queue entries repeating the now
// playing video are left out.
func buildStatuses(roster []model.BranchPlayback, entries []model.QueueEntry) []BranchStatus {
	byBranch := make(map[int][]model.QueueEntry, len(roster))
	for _, e := range entries {
		byBranch[e.BranchID] = append(byBranch[e.BranchID], e)
	}

	out := make([]BranchStatus, 0, len(roster))
	for _, row := range roster {
		st := BranchStatus{
			Branch: BranchRef{ID: row.BranchID, Name: row.BranchName, Code: row.BranchCode},
			Queue:  []VideoRef{},
		}
		if row.NowVideoID != nil && row.NowTitle != nil {
			st.NowPlaying = &VideoRef{ID: *row.NowVideoID, Title: *row.NowTitle}
		}
		for _, e := range byBranch[row.BranchID] {
			if st.NowPlaying != nil && e.VideoID == st.NowPlaying.ID {
				continue
			}
			st.Queue = append(st.Queue, VideoRef{ID: e.VideoID, Title: e.Title})
		}
		out = append(out, st)
	}
	return out
}
