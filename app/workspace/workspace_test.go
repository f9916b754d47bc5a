package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/reway/app/bookmark"
)

var errStore = errors.New("store unavailable")

type mockStore struct {
	mu sync.Mutex

	fail      bool
	nextID    int
	orders    [][]bookmark.OrderUpdate
	folder    [][]bookmark.OrderUpdate
	deleted   []string
	restored  []string
	patches   map[string]bookmark.Patch
	groupDels []string
}

func (m *mockStore) CreateBookmark(ctx context.Context, params bookmark.CreateParams) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return "", errStore
	}
	m.nextID++
	return fmt.Sprintf("stored-%d", m.nextID), nil
}

func (m *mockStore) UpdateBookmark(ctx context.Context, id string, patch bookmark.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errStore
	}
	if m.patches == nil {
		m.patches = make(map[string]bookmark.Patch)
	}
	m.patches[id] = patch
	return nil
}

func (m *mockStore) UpdateOrder(ctx context.Context, updates []bookmark.OrderUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errStore
	}
	m.orders = append(m.orders, updates)
	return nil
}

func (m *mockStore) UpdateFolderOrder(ctx context.Context, updates []bookmark.OrderUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errStore
	}
	m.folder = append(m.folder, updates)
	return nil
}

func (m *mockStore) SoftDelete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errStore
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockStore) Restore(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errStore
	}
	m.restored = append(m.restored, id)
	return nil
}

func (m *mockStore) CreateGroup(ctx context.Context, name, icon string, color *string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return "", errStore
	}
	m.nextID++
	return fmt.Sprintf("group-%d", m.nextID), nil
}

func (m *mockStore) UpdateGroup(ctx context.Context, id string, patch bookmark.GroupPatch) error {
	if m.fail {
		return errStore
	}
	return nil
}

func (m *mockStore) DeleteGroup(ctx context.Context, id string) error {
	if m.fail {
		return errStore
	}
	m.groupDels = append(m.groupDels, id)
	return nil
}

func (m *mockStore) UpdateGroupOrder(ctx context.Context, updates []bookmark.OrderUpdate) error {
	if m.fail {
		return errStore
	}
	return nil
}

func strPtr(s string) *string {
	return &s
}

func rowsABC() []bookmark.Bookmark {
	return []bookmark.Bookmark{
		{ID: "A", URL: "https://a.example.com", Title: "A", OrderIndex: 0, Status: bookmark.StatusReady},
		{ID: "B", URL: "https://b.example.com", Title: "B", OrderIndex: 1, Status: bookmark.StatusReady},
		{ID: "C", URL: "https://c.example.com", Title: "C", OrderIndex: 2, Status: bookmark.StatusReady},
	}
}

func ids(rows []bookmark.Bookmark) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func newWorkspace(store *mockStore) *Workspace {
	ws := New(store, store, 8*time.Second)
	ws.Load(rowsABC(), nil)
	return ws
}

func TestReorder_Persists(t *testing.T) {
	store := &mockStore{}
	ws := newWorkspace(store)

	require.NoError(t, ws.Reorder(context.Background(), []string{"C", "A", "B"}))

	rows := ws.Bookmarks()
	assert.Equal(t, []string{"C", "A", "B"}, ids(rows))
	for i, row := range rows {
		assert.Equal(t, int64(i), row.OrderIndex)
	}
	require.Len(t, store.orders, 1)
	assert.Equal(t, []bookmark.OrderUpdate{{ID: "C", OrderIndex: 0}, {ID: "A", OrderIndex: 1}, {ID: "B", OrderIndex: 2}}, store.orders[0])
}

func TestReorder_RollsBackOnFailure(t *testing.T) {
	store := &mockStore{fail: true}
	ws := newWorkspace(store)
	before := ws.Bookmarks()

	err := ws.Reorder(context.Background(), []string{"C", "A", "B"})
	require.ErrorIs(t, err, errStore)

	assert.Equal(t, before, ws.Bookmarks())
}

func TestReorder_RejectsUnknownIDs(t *testing.T) {
	store := &mockStore{}
	ws := newWorkspace(store)

	assert.ErrorIs(t, ws.Reorder(context.Background(), []string{"C", "Z"}), ErrInvalidOrder)
	assert.ErrorIs(t, ws.Reorder(context.Background(), []string{"C", "C"}), ErrInvalidOrder)
	assert.Equal(t, []string{"A", "B", "C"}, ids(ws.Bookmarks()))
	assert.Empty(t, store.orders)
}

func TestReorderFolder(t *testing.T) {
	store := &mockStore{}
	ws := New(store, store, 0)
	g := strPtr("g1")
	ws.Load([]bookmark.Bookmark{
		{ID: "A", GroupID: g, OrderIndex: 0, FolderOrderIndex: 0},
		{ID: "B", OrderIndex: 1},
		{ID: "C", GroupID: g, OrderIndex: 2, FolderOrderIndex: 1},
	}, nil)

	require.NoError(t, ws.ReorderFolder(context.Background(), g, []string{"C", "A"}))
	assert.Equal(t, []string{"C", "A"}, ids(ws.FolderView(g)))
	// all-bookmarks order is untouched
	assert.Equal(t, []string{"A", "B", "C"}, ids(ws.Bookmarks()))

	store.fail = true
	require.Error(t, ws.ReorderFolder(context.Background(), g, []string{"A", "C"}))
	assert.Equal(t, []string{"C", "A"}, ids(ws.FolderView(g)))
}

func TestConfirmID_KeepsPosition(t *testing.T) {
	ws := newWorkspace(&mockStore{})
	ws.Prepend([]bookmark.Bookmark{{ID: "temp-1", OrderIndex: -1, Status: bookmark.StatusPending, Optimistic: true}})

	require.True(t, ws.ConfirmID("temp-1", "Y"))
	assert.False(t, ws.ConfirmID("temp-1", "Z"))

	rows := ws.Bookmarks()
	assert.Equal(t, []string{"Y", "A", "B", "C"}, ids(rows))
	assert.Equal(t, int64(-1), rows[0].OrderIndex)
	assert.False(t, rows[0].Optimistic)
}

func TestCreate(t *testing.T) {
	store := &mockStore{}
	ws := newWorkspace(store)

	row, err := ws.Create(context.Background(), "new.example.com", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "stored-1", row.ID)
	assert.Equal(t, "new.example.com", row.Title)
	assert.Equal(t, int64(-1), row.OrderIndex)
	assert.Equal(t, bookmark.StatusPending, row.Status)
	assert.Equal(t, []string{"stored-1", "A", "B", "C"}, ids(ws.Bookmarks()))

	store.fail = true
	_, err = ws.Create(context.Background(), "other.example.com", "", nil)
	require.Error(t, err)
	assert.Len(t, ws.Bookmarks(), 4)

	_, err = ws.Create(context.Background(), "javascript:void(0)", "", nil)
	require.Error(t, err)
}

func TestApplyEnrichment(t *testing.T) {
	ws := newWorkspace(&mockStore{})
	ws.Prepend([]bookmark.Bookmark{{ID: "P", Title: "p.example.com", Status: bookmark.StatusPending, Enriching: true}})

	fetched := time.Now().UTC()
	ok := ws.ApplyEnrichment("P", bookmark.Enrichment{
		Status:        bookmark.StatusReady,
		Title:         "Fetched",
		FaviconURL:    "https://p.example.com/favicon.ico",
		LastFetchedAt: &fetched,
	})
	require.True(t, ok)

	row, _ := ws.Bookmark("P")
	assert.Equal(t, bookmark.StatusReady, row.Status)
	assert.Equal(t, "Fetched", row.Title)
	assert.False(t, row.Enriching)
	assert.Equal(t, &fetched, row.LastFetchedAt)

	// terminal rows are not moved back
	assert.False(t, ws.ApplyEnrichment("P", bookmark.Enrichment{Status: bookmark.StatusFailed}))
	assert.False(t, ws.MarkFailed("P", "Import failed"))
	row, _ = ws.Bookmark("P")
	assert.Equal(t, bookmark.StatusReady, row.Status)
}

func TestApplyEnrichment_Failed(t *testing.T) {
	ws := newWorkspace(&mockStore{})
	ws.Prepend([]bookmark.Bookmark{{ID: "P", Status: bookmark.StatusPending, Enriching: true}})

	require.True(t, ws.ApplyEnrichment("P", bookmark.Enrichment{Status: bookmark.StatusFailed, ErrorReason: "HTTP 404"}))
	row, _ := ws.Bookmark("P")
	assert.Equal(t, bookmark.StatusFailed, row.Status)
	assert.Equal(t, "HTTP 404", row.ErrorReason)
	assert.False(t, row.Enriching)
}

func TestEdit_SingleRowRevert(t *testing.T) {
	store := &mockStore{}
	ws := newWorkspace(store)

	edited, err := ws.Edit(context.Background(), "B", bookmark.Patch{Title: strPtr("Renamed")})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", edited.Title)

	store.fail = true
	before := ws.Bookmarks()
	_, err = ws.Edit(context.Background(), "A", bookmark.Patch{Title: strPtr("Broken")})
	require.Error(t, err)
	assert.Equal(t, before, ws.Bookmarks())

	_, err = ws.Edit(context.Background(), "missing", bookmark.Patch{Title: strPtr("x")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteAndUndo(t *testing.T) {
	store := &mockStore{}
	ws := newWorkspace(store)
	before := ws.Bookmarks()

	token, err := ws.Delete(context.Background(), "B")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, ids(ws.Bookmarks()))
	assert.Equal(t, []string{"B"}, store.deleted)

	restored, err := ws.Undo(context.Background(), token.Token)
	require.NoError(t, err)
	assert.Equal(t, "B", restored.ID)
	assert.Equal(t, before, ws.Bookmarks())
	assert.Equal(t, []string{"B"}, store.restored)

	_, err = ws.Undo(context.Background(), token.Token)
	assert.ErrorIs(t, err, ErrUndoExpired)
}

func TestUndo_Expired(t *testing.T) {
	ws := newWorkspace(&mockStore{})
	now := time.Now()
	ws.now = func() time.Time { return now }

	token, err := ws.Delete(context.Background(), "A")
	require.NoError(t, err)

	now = now.Add(9 * time.Second)
	_, err = ws.Undo(context.Background(), token.Token)
	assert.ErrorIs(t, err, ErrUndoExpired)
	assert.Equal(t, []string{"B", "C"}, ids(ws.Bookmarks()))
}

func TestDelete_FailureReinserts(t *testing.T) {
	store := &mockStore{fail: true}
	ws := newWorkspace(store)
	before := ws.Bookmarks()

	_, err := ws.Delete(context.Background(), "B")
	require.Error(t, err)
	assert.Equal(t, before, ws.Bookmarks())

	_, err = ws.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPruneUndo(t *testing.T) {
	ws := newWorkspace(&mockStore{})
	now := time.Now()
	ws.now = func() time.Time { return now }

	_, err := ws.Delete(context.Background(), "A")
	require.NoError(t, err)
	assert.Empty(t, ws.PruneUndo())

	now = now.Add(ws.UndoWindow())
	assert.Equal(t, []string{"A"}, ws.PruneUndo())
	assert.Empty(t, ws.PruneUndo())
}

// blockingStore holds UpdateOrder and UpdateBookmark until released, then
// rejects them.
type blockingStore struct {
	*mockStore
	entered chan struct{}
	release chan struct{}
	updates []bookmark.OrderUpdate
}

func newBlockingStore() *blockingStore {
	return &blockingStore{
		mockStore: &mockStore{},
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (b *blockingStore) UpdateOrder(ctx context.Context, updates []bookmark.OrderUpdate) error {
	b.updates = updates
	b.entered <- struct{}{}
	<-b.release
	return errStore
}

func (b *blockingStore) UpdateBookmark(ctx context.Context, id string, patch bookmark.Patch) error {
	b.entered <- struct{}{}
	<-b.release
	return errStore
}

func (b *blockingStore) DeleteGroup(ctx context.Context, id string) error {
	b.entered <- struct{}{}
	<-b.release
	return errStore
}

func TestReorder_RollbackKeepsConcurrentUpdates(t *testing.T) {
	store := newBlockingStore()
	ws := New(store, store, 0)
	ws.Load([]bookmark.Bookmark{
		{ID: "temp-x", URL: "https://x.example.com", OrderIndex: -1, Status: bookmark.StatusPending, Enriching: true, Optimistic: true},
		{ID: "A", OrderIndex: 0, Status: bookmark.StatusReady},
		{ID: "B", OrderIndex: 1, Status: bookmark.StatusReady},
	}, nil)

	errc := make(chan error, 1)
	go func() {
		errc <- ws.Reorder(context.Background(), []string{"B", "A"})
	}()
	<-store.entered

	require.True(t, ws.ConfirmID("temp-x", "stored-x"))
	require.True(t, ws.ApplyEnrichment("stored-x", bookmark.Enrichment{Status: bookmark.StatusReady, Title: "X"}))
	created, err := ws.Create(context.Background(), "new.example.com", "", nil)
	require.NoError(t, err)

	close(store.release)
	require.ErrorIs(t, <-errc, errStore)

	// optimistic rows are never sent to the store
	assert.Equal(t, []bookmark.OrderUpdate{{ID: "B", OrderIndex: 0}, {ID: "A", OrderIndex: 1}}, store.updates)

	rows := ws.Bookmarks()
	assert.Equal(t, []string{created.ID, "A", "B", "stored-x"}, ids(rows))

	x, ok := ws.Bookmark("stored-x")
	require.True(t, ok)
	assert.Equal(t, bookmark.StatusReady, x.Status)
	assert.Equal(t, "X", x.Title)
	assert.False(t, x.Optimistic)

	a, _ := ws.Bookmark("A")
	b, _ := ws.Bookmark("B")
	assert.Equal(t, int64(0), a.OrderIndex)
	assert.Equal(t, int64(1), b.OrderIndex)
}

func TestEdit_RevertKeepsConcurrentEnrichment(t *testing.T) {
	store := newBlockingStore()
	ws := New(store, store, 0)
	ws.Load([]bookmark.Bookmark{
		{ID: "P", URL: "https://p.example.com", Title: "p.example.com", Status: bookmark.StatusPending, Enriching: true},
	}, nil)

	errc := make(chan error, 1)
	go func() {
		_, err := ws.Edit(context.Background(), "P", bookmark.Patch{Title: strPtr("Renamed")})
		errc <- err
	}()
	<-store.entered

	require.True(t, ws.ApplyEnrichment("P", bookmark.Enrichment{Status: bookmark.StatusReady, Description: "Fetched"}))

	close(store.release)
	require.ErrorIs(t, <-errc, errStore)

	row, _ := ws.Bookmark("P")
	assert.Equal(t, "p.example.com", row.Title)
	assert.Equal(t, "Fetched", row.Description)
	assert.Equal(t, bookmark.StatusReady, row.Status)
}
