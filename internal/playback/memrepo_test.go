package playback

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Nixie-Tech-LLC/branchcast/internal/db"
	"github.com/Nixie-Tech-LLC/branchcast/internal/model"
)

// memRepo is an in-memory Repository. WithPlayback serializes per branch and
// only keeps the callback's changes when it returns nil.
type memRepo struct {
	mu       sync.Mutex
	branches map[int]model.Branch
	videos   map[int]string
	states   map[int]*memState
	locks    map[int]*sync.Mutex
	touched  map[int]int
	touchErr error
	nextID   int

	// afterExists runs once ExistingVideoIDs has answered, outside r.mu.
	afterExists func()
}

type memState struct {
	state model.PlaybackState
	queue []model.QueueItem
}

func newMemRepo() *memRepo {
	return &memRepo{
		branches: map[int]model.Branch{},
		videos:   map[int]string{},
		states:   map[int]*memState{},
		locks:    map[int]*sync.Mutex{},
		touched:  map[int]int{},
	}
}

func (r *memRepo) addBranch(id int, name, code string) {
	r.branches[id] = model.Branch{ID: id, Name: name, Code: code}
}

func (r *memRepo) addVideo(id int, title string) { r.videos[id] = title }

func (r *memRepo) id() int {
	r.nextID++
	return r.nextID
}

func (r *memRepo) GetBranchByID(_ context.Context, id int) (model.Branch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.branches[id]
	if !ok {
		return model.Branch{}, db.ErrNotFound
	}
	return b, nil
}

func (r *memRepo) GetBranchByCode(_ context.Context, code string) (model.Branch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.branches {
		if b.Code == code {
			return b, nil
		}
	}
	return model.Branch{}, db.ErrNotFound
}

func (r *memRepo) TouchBranchLastSeen(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched[id]++
	return r.touchErr
}

func (r *memRepo) ExistingVideoIDs(_ context.Context, ids []int) (map[int]bool, error) {
	r.mu.Lock()
	out := map[int]bool{}
	for _, id := range ids {
		if _, ok := r.videos[id]; ok {
			out[id] = true
		}
	}
	r.mu.Unlock()
	if r.afterExists != nil {
		r.afterExists()
	}
	return out, nil
}

func (r *memRepo) removeVideo(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.videos, id)
}

// hasVideos mirrors the video foreign key on playback writes.
func (r *memRepo) hasVideos(ids ...int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if _, ok := r.videos[id]; !ok {
			return false
		}
	}
	return true
}

func (r *memRepo) WithPlayback(_ context.Context, branchID int, create bool, fn func(db.PlaybackTx) error) error {
	r.mu.Lock()
	if _, ok := r.branches[branchID]; !ok {
		r.mu.Unlock()
		return db.ErrNotFound
	}
	lock, ok := r.locks[branchID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[branchID] = lock
	}
	r.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	st, ok := r.states[branchID]
	if !ok {
		if !create {
			r.mu.Unlock()
			return db.ErrNotFound
		}
		st = &memState{state: model.PlaybackState{ID: r.id(), BranchID: branchID}}
		r.states[branchID] = st
	}
	tx := &memTx{repo: r, state: st.state, queue: append([]model.QueueItem(nil), st.queue...)}
	r.mu.Unlock()

	if err := fn(tx); err != nil {
		return err
	}

	r.mu.Lock()
	r.states[branchID] = &memState{state: tx.state, queue: tx.queue}
	r.mu.Unlock()
	return nil
}

func (r *memRepo) ListBranchPlaybacks(ctx context.Context) ([]model.BranchPlayback, error) {
	r.mu.Lock()
	ids := make([]int, 0, len(r.branches))
	for id := range r.branches {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	out := make([]model.BranchPlayback, 0, len(ids))
	for _, id := range ids {
		row, _ := r.GetBranchPlayback(ctx, id)
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BranchName != out[j].BranchName {
			return out[i].BranchName < out[j].BranchName
		}
		return out[i].BranchID < out[j].BranchID
	})
	return out, nil
}

func (r *memRepo) GetBranchPlayback(_ context.Context, branchID int) (model.BranchPlayback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.branches[branchID]
	if !ok {
		return model.BranchPlayback{}, db.ErrNotFound
	}
	row := model.BranchPlayback{BranchID: b.ID, BranchName: b.Name, BranchCode: b.Code}
	if st, ok := r.states[branchID]; ok {
		id := st.state.ID
		row.PlaybackID = &id
		row.StartedAt = st.state.StartedAt
		if st.state.NowVideoID != nil {
			v := *st.state.NowVideoID
			title := r.videos[v]
			row.NowVideoID = &v
			row.NowTitle = &title
		}
	}
	return row, nil
}

func (r *memRepo) ListQueueEntries(_ context.Context, branchID *int) ([]model.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.QueueEntry
	for bid, st := range r.states {
		if branchID != nil && *branchID != bid {
			continue
		}
		for _, item := range st.queue {
			out = append(out, model.QueueEntry{BranchID: bid, Order: item.Order, VideoID: item.VideoID, Title: r.videos[item.VideoID]})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BranchID != out[j].BranchID {
			return out[i].BranchID < out[j].BranchID
		}
		return out[i].Order < out[j].Order
	})
	return out, nil
}

// queueOf returns the stored queue of a branch, in order.
func (r *memRepo) queueOf(branchID int) []model.QueueItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[branchID]
	if !ok {
		return nil
	}
	out := append([]model.QueueItem(nil), st.queue...)
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

type memTx struct {
	repo  *memRepo
	state model.PlaybackState
	queue []model.QueueItem
}

func (t *memTx) State() model.PlaybackState { return t.state }

func (t *memTx) Queue() ([]model.QueueItem, error) {
	out := append([]model.QueueItem(nil), t.queue...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *memTx) SetNowPlaying(videoID *int, startedAt time.Time) error {
	if videoID != nil && !t.repo.hasVideos(*videoID) {
		return db.ErrVideoNotFound
	}
	t.state.NowVideoID = videoID
	t.state.StartedAt = &startedAt
	return nil
}

func (t *memTx) ClearNowPlaying() error {
	t.state.NowVideoID = nil
	return nil
}

func (t *memTx) ClearQueue() error {
	t.queue = nil
	return nil
}

func (t *memTx) AppendQueue(videoIDs []int, addedAt time.Time) error {
	if !t.repo.hasVideos(videoIDs...) {
		return db.ErrVideoNotFound
	}
	tail := 0
	for _, item := range t.queue {
		if item.Order > tail {
			tail = item.Order
		}
	}
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	for i, v := range videoIDs {
		t.queue = append(t.queue, model.QueueItem{ID: t.repo.id(), PlaybackID: t.state.ID, VideoID: v, Order: tail + i + 1, AddedAt: addedAt})
	}
	return nil
}

func (t *memTx) RemoveQueueItems(itemIDs ...int) error {
	drop := map[int]bool{}
	for _, id := range itemIDs {
		drop[id] = true
	}
	kept := t.queue[:0]
	for _, item := range t.queue {
		if !drop[item.ID] {
			kept = append(kept, item)
		}
	}
	t.queue = kept
	return nil
}

func (t *memTx) ReindexQueue() error {
	q, _ := t.Queue()
	for i := range q {
		q[i].Order = i + 1
	}
	t.queue = q
	return nil
}

// recorder is a Notifier that keeps every event it receives.
type recorder struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recorder) Notify(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
