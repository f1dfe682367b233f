package endpoints

import (
	"context"
	"mime/multipart"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Nixie-Tech-LLC/branchcast/internal/db"
	"github.com/Nixie-Tech-LLC/branchcast/internal/model"
	"github.com/Nixie-Tech-LLC/branchcast/internal/playback"
)

type fakeStore struct {
	mu       sync.Mutex
	users    map[int]*model.User
	branches map[int]model.Branch
	videos   map[int]model.Video
	catalog  map[int][]int
	nextID   int
	// branches whose playback references a video
	playing map[int][]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[int]*model.User{1: {ID: 1, Email: "admin@example.com"}},
		branches: map[int]model.Branch{},
		videos:   map[int]model.Video{},
		catalog:  map[int][]int{},
		playing:  map[int][]int{},
		nextID:   100,
	}
}

func (f *fakeStore) GetUserByID(_ context.Context, id int) (*model.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, db.ErrNotFound
}

func (f *fakeStore) id() int {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) CreateBranch(_ context.Context, name, code string) (model.Branch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.branches {
		if b.Code == code {
			return model.Branch{}, &db.DuplicateError{Constraint: "branches_code_key"}
		}
	}
	b := model.Branch{ID: f.id(), Name: name, Code: code, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.branches[b.ID] = b
	return b, nil
}

func (f *fakeStore) GetBranchByID(_ context.Context, id int) (model.Branch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.branches[id]
	if !ok {
		return model.Branch{}, db.ErrNotFound
	}
	return b, nil
}

func (f *fakeStore) ListBranches(_ context.Context) ([]model.BranchSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.BranchSummary
	for _, b := range f.branches {
		out = append(out, model.BranchSummary{Branch: b, VideoCount: len(f.catalog[b.ID])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeStore) UpdateBranch(_ context.Context, id int, name, code string) (model.Branch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.branches[id]
	if !ok {
		return model.Branch{}, db.ErrNotFound
	}
	b.Name, b.Code = name, code
	f.branches[id] = b
	return b, nil
}

func (f *fakeStore) UpdateBranchCredentials(_ context.Context, id int, loginUser *string, hash *string) (model.Branch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.branches[id]
	if !ok {
		return model.Branch{}, db.ErrNotFound
	}
	b.LoginUser = loginUser
	if hash != nil {
		b.LoginPassword = hash
	}
	f.branches[id] = b
	return b, nil
}

func (f *fakeStore) DeleteBranch(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.branches[id]; !ok {
		return db.ErrNotFound
	}
	delete(f.branches, id)
	delete(f.catalog, id)
	return nil
}

func (f *fakeStore) SetCatalog(ctx context.Context, branchID int, videoIDs []int) ([]model.CatalogEntry, error) {
	f.mu.Lock()
	if _, ok := f.branches[branchID]; !ok {
		f.mu.Unlock()
		return nil, db.ErrNotFound
	}
	seen := map[int]bool{}
	var ids []int
	for _, id := range videoIDs {
		if _, ok := f.videos[id]; ok && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	f.catalog[branchID] = ids
	f.mu.Unlock()
	return f.ListCatalog(ctx, branchID)
}

func (f *fakeStore) ClearCatalog(_ context.Context, branchID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.branches[branchID]; !ok {
		return db.ErrNotFound
	}
	delete(f.catalog, branchID)
	return nil
}

func (f *fakeStore) DetachVideo(_ context.Context, branchID, videoID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.branches[branchID]; !ok {
		return db.ErrNotFound
	}
	ids := f.catalog[branchID]
	for i, id := range ids {
		if id == videoID {
			f.catalog[branchID] = append(ids[:i:i], ids[i+1:]...)
			return nil
		}
	}
	return db.ErrNotFound
}

func (f *fakeStore) ListCatalog(_ context.Context, branchID int) ([]model.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.CatalogEntry
	for i, id := range f.catalog[branchID] {
		v := f.videos[id]
		out = append(out, model.CatalogEntry{BranchID: branchID, VideoID: id, Position: i + 1, Title: v.Title, URL: v.URL})
	}
	return out, nil
}

func (f *fakeStore) CreateVideo(_ context.Context, title, url string) (model.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := model.Video{ID: f.id(), Title: title, URL: url, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.videos[v.ID] = v
	return v, nil
}

func (f *fakeStore) GetVideoByID(_ context.Context, id int) (model.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[id]
	if !ok {
		return model.Video{}, db.ErrNotFound
	}
	return v, nil
}

func (f *fakeStore) ListVideos(_ context.Context) ([]model.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Video
	for _, v := range f.videos {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) ListVideoBranches(_ context.Context) ([]model.VideoBranch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.VideoBranch
	for bid, ids := range f.catalog {
		b := f.branches[bid]
		for _, id := range ids {
			out = append(out, model.VideoBranch{VideoID: id, BranchID: bid, BranchName: b.Name, BranchCode: b.Code})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BranchID < out[j].BranchID })
	return out, nil
}

func (f *fakeStore) RenameVideo(_ context.Context, id int, title string) (model.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[id]
	if !ok {
		return model.Video{}, db.ErrNotFound
	}
	v.Title = title
	f.videos[id] = v
	return v, nil
}

func (f *fakeStore) DeleteVideo(_ context.Context, id int) (model.Video, []int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[id]
	if !ok {
		return model.Video{}, nil, db.ErrNotFound
	}
	delete(f.videos, id)
	for bid, ids := range f.catalog {
		kept := ids[:0:0]
		for _, x := range ids {
			if x != id {
				kept = append(kept, x)
			}
		}
		f.catalog[bid] = kept
	}
	return v, f.playing[id], nil
}

func (f *fakeStore) PlaybackBranchesForVideo(_ context.Context, id int) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing[id], nil
}

type notified struct {
	kind     playback.EventKind
	branches []int
}

type fakePlayback struct {
	mu        sync.Mutex
	onNotify  func()
	notified  []notified
	published []playback.Event
	statuses  []playback.BranchStatus
	setErr    error
	advErr    error
	advance   playback.AdvanceResult
	statusHit int
}

func (f *fakePlayback) SetQueue(_ context.Context, branchID int, now *int, queue []int) (playback.BranchStatus, error) {
	if f.setErr != nil {
		return playback.BranchStatus{}, f.setErr
	}
	st := playback.BranchStatus{Branch: playback.BranchRef{ID: branchID}, Queue: []playback.VideoRef{}}
	if now != nil {
		st.NowPlaying = &playback.VideoRef{ID: *now}
	}
	for _, id := range queue {
		st.Queue = append(st.Queue, playback.VideoRef{ID: id})
	}
	return st, nil
}

func (f *fakePlayback) Advance(_ context.Context, _ int) (playback.AdvanceResult, error) {
	return f.advance, f.advErr
}

func (f *fakePlayback) StatusAll(_ context.Context) ([]playback.BranchStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusHit++
	return f.statuses, nil
}

func (f *fakePlayback) NotifyBranches(_ context.Context, kind playback.EventKind, ids ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, notified{kind: kind, branches: ids})
	if f.onNotify != nil && len(ids) > 0 {
		f.onNotify()
	}
}

func (f *fakePlayback) Publish(_ context.Context, ev playback.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, ev)
}

type fakeStorage struct {
	saved   []string
	deleted []string
}

func (f *fakeStorage) SaveFile(_ *multipart.FileHeader, filename string) (string, error) {
	ref := "/uploads/" + filename
	f.saved = append(f.saved, ref)
	return ref, nil
}

func (f *fakeStorage) DeleteFile(ref string) error {
	f.deleted = append(f.deleted, ref)
	return nil
}

// memCache stores one body per key and generation.
type memCache struct {
	gens   map[string]int64
	bodies map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{gens: map[string]int64{}, bodies: map[string][]byte{}}
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, int64, bool) {
	gen := m.gens[key]
	b, ok := m.bodies[key+"@"+strconv.FormatInt(gen, 10)]
	return b, gen, ok
}

func (m *memCache) Put(_ context.Context, key string, gen int64, body []byte) {
	m.bodies[key+"@"+strconv.FormatInt(gen, 10)] = body
}

func (m *memCache) invalidate(keys ...string) {
	for _, k := range keys {
		m.gens[k]++
	}
}
