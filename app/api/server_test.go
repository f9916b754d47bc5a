package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/reway/app/bookmark"
	"github.com/lysyi3m/reway/app/database"
	"github.com/lysyi3m/reway/app/icons"
	"github.com/lysyi3m/reway/app/progress"
	"github.com/lysyi3m/reway/app/tasks"
	"github.com/lysyi3m/reway/app/workspace"
)

const testAPIKey = "test-key"

const researchFile = `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<DL><p>
    <DT><H3>Research</H3>
    <DL><p>
        <DT><A HREF="https://a.example.com/">Paper A</A>
        <DT><A HREF="https://b.example.com/paper">Paper B</A>
        <DT><A HREF="https://c.example.com/notes">Notes C</A>
    </DL><p>
</DL><p>
`

// MockScheduler runs every task as soon as it is enqueued, or keeps it in
// held when hold is set.
type MockScheduler struct {
	executed []tasks.TaskType
	hold     bool
	held     []tasks.TaskInterface
}

func (m *MockScheduler) Start() {}
func (m *MockScheduler) Stop() {}

func (m *MockScheduler) EnqueueTask(task tasks.TaskInterface) error {
	if m.hold {
		m.held = append(m.held, task)
		return nil
	}
	task.Start()
	m.executed = append(m.executed, task.GetType())
	return task.Execute(context.Background())
}

type MockEnricher struct{}

func (m *MockEnricher) Enrich(ctx context.Context, id, url string) bookmark.Enrichment {
	now := time.Now().UTC()
	return bookmark.Enrichment{
		Status:        bookmark.StatusReady,
		Title:         "Fetched title",
		LastFetchedAt: &now,
	}
}

type testServer struct {
	router    *gin.Engine
	workspace *workspace.Workspace
	scheduler *MockScheduler
	bookmarks *database.BookmarkRepository
}

func setupServer(t *testing.T) testServer {
	t.Helper()

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "reway.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, _, err = database.RunMigrations(db)
	require.NoError(t, err)

	bookmarks := database.NewBookmarkRepository(db)
	groups := database.NewGroupRepository(db)
	ws := workspace.New(bookmarks, groups, time.Minute)
	scheduler := &MockScheduler{}
	tracker := tasks.NewImportTracker(progress.NewMemoryStore(time.Hour))

	handler := NewHandler(ws, bookmarks, groups, &MockEnricher{}, scheduler, tracker, icons.MustGet(), 5, "test")

	return testServer{
		router:    NewServer(handler, testAPIKey),
		workspace: ws,
		scheduler: scheduler,
		bookmarks: bookmarks,
	}
}

func (s testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testAPIKey)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s testServer) upload(t *testing.T, content string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "bookmarks.html")
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/imports/preview", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+testAPIKey)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type bookmarkList struct {
	Bookmarks []BookmarkResponse `json:"bookmarks"`
	Total     int                `json:"total"`
}

func TestAuthMiddleware(t *testing.T) {
	s := setupServer(t)

	tests := []struct {
		name   string
		header string
		value  string
		status int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong key", "X-API-Key", "nope", http.StatusUnauthorized},
		{"header", "X-API-Key", testAPIKey, http.StatusOK},
		{"bearer", "Authorization", "Bearer " + testAPIKey, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/bookmarks", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestHealthIsPublic(t *testing.T) {
	s := setupServer(t)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "ok", body["status"])
}

func TestCreateBookmark(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, http.MethodPost, "/api/bookmarks", CreateBookmarkRequest{URL: "https://go.dev/doc"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[BookmarkResponse](t, w)
	assert.False(t, bookmark.IsTempID(created.ID))
	assert.Equal(t, "https://go.dev/doc", created.Title)
	assert.Equal(t, []tasks.TaskType{tasks.TaskTypeEnrichBookmark}, s.scheduler.executed)

	w = s.do(t, http.MethodGet, "/api/bookmarks/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	row := decode[BookmarkResponse](t, w)
	assert.Equal(t, "ready", row.Status)
	assert.Equal(t, "Fetched title", row.Title)

	w = s.do(t, http.MethodPost, "/api/bookmarks", CreateBookmarkRequest{URL: "not a url"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	missing := "no-such-group"
	w = s.do(t, http.MethodPost, "/api/bookmarks", CreateBookmarkRequest{URL: "https://example.com", GroupID: &missing})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateBookmark(t *testing.T) {
	s := setupServer(t)

	created := decode[BookmarkResponse](t, s.do(t, http.MethodPost, "/api/bookmarks", CreateBookmarkRequest{URL: "https://example.com"}))

	title := "Renamed"
	w := s.do(t, http.MethodPatch, "/api/bookmarks/"+created.ID, UpdateBookmarkRequest{Title: &title})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Renamed", decode[BookmarkResponse](t, w).Title)

	stored, err := s.bookmarks.GetBookmark(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Renamed", stored.Title)

	w = s.do(t, http.MethodPatch, "/api/bookmarks/missing", UpdateBookmarkRequest{Title: &title})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPatch, "/api/bookmarks/"+created.ID, UpdateBookmarkRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteAndUndo(t *testing.T) {
	s := setupServer(t)

	created := decode[BookmarkResponse](t, s.do(t, http.MethodPost, "/api/bookmarks", CreateBookmarkRequest{URL: "https://example.com"}))

	w := s.do(t, http.MethodDelete, "/api/bookmarks/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	token := decode[workspace.UndoToken](t, w)
	require.NotEmpty(t, token.Token)

	list := decode[bookmarkList](t, s.do(t, http.MethodGet, "/api/bookmarks", nil))
	assert.Equal(t, 0, list.Total)

	w = s.do(t, http.MethodPost, "/api/bookmarks/undo/"+token.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	list = decode[bookmarkList](t, s.do(t, http.MethodGet, "/api/bookmarks", nil))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, created.ID, list.Bookmarks[0].ID)

	w = s.do(t, http.MethodPost, "/api/bookmarks/undo/"+token.Token, nil)
	assert.Equal(t, http.StatusGone, w.Code)
}

func TestReorderBookmarks(t *testing.T) {
	s := setupServer(t)

	a := decode[BookmarkResponse](t, s.do(t, http.MethodPost, "/api/bookmarks", CreateBookmarkRequest{URL: "https://a.example.com"}))
	b := decode[BookmarkResponse](t, s.do(t, http.MethodPost, "/api/bookmarks", CreateBookmarkRequest{URL: "https://b.example.com"}))

	w := s.do(t, http.MethodPut, "/api/bookmarks/order", OrderRequest{IDs: []string{a.ID, b.ID}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	list := decode[bookmarkList](t, w)
	require.Len(t, list.Bookmarks, 2)
	assert.Equal(t, a.ID, list.Bookmarks[0].ID)
	assert.Equal(t, int64(0), list.Bookmarks[0].OrderIndex)
	assert.Equal(t, int64(1), list.Bookmarks[1].OrderIndex)

	w = s.do(t, http.MethodPut, "/api/bookmarks/order", OrderRequest{IDs: []string{"unknown"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	rows := s.workspace.Bookmarks()
	assert.Equal(t, a.ID, rows[0].ID, "failed reorder leaves the list unchanged")
}

func TestGroups(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, http.MethodPost, "/api/groups", CreateGroupRequest{Name: "Research"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	group := decode[GroupResponse](t, w)
	assert.Equal(t, "book", group.Icon)

	w = s.do(t, http.MethodPost, "/api/groups", CreateGroupRequest{Name: "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	created := decode[BookmarkResponse](t, s.do(t, http.MethodPost, "/api/bookmarks",
		CreateBookmarkRequest{URL: "https://example.com", GroupID: &group.ID}))
	require.NotNil(t, created.GroupID)

	list := decode[bookmarkList](t, s.do(t, http.MethodGet, "/api/bookmarks?group="+group.ID, nil))
	assert.Equal(t, 1, list.Total)

	w = s.do(t, http.MethodDelete, "/api/groups/"+group.ID, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	row, ok := s.workspace.Bookmark(created.ID)
	require.True(t, ok)
	assert.Nil(t, row.GroupID)

	list = decode[bookmarkList](t, s.do(t, http.MethodGet, "/api/bookmarks?group=ungrouped", nil))
	assert.Equal(t, 1, list.Total)

	w = s.do(t, http.MethodDelete, "/api/groups/"+group.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPreviewImport(t *testing.T) {
	s := setupServer(t)

	w := s.upload(t, researchFile)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	preview := decode[PreviewResponse](t, w)
	assert.Equal(t, 3, preview.Total)
	assert.Equal(t, 0, preview.Duplicates)
	require.Len(t, preview.Groups, 1)
	assert.Equal(t, bookmark.GroupSummary{Name: "Research", Count: 3}, preview.Groups[0])

	w = s.upload(t, "<html><body>nothing here</body></html>")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestImportFlow(t *testing.T) {
	s := setupServer(t)

	preview := decode[PreviewResponse](t, s.upload(t, researchFile))

	w := s.do(t, http.MethodPost, "/api/imports", ImportRequest{Entries: preview.Entries})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	queued := decode[bookmark.Progress](t, w)
	require.NotEmpty(t, queued.JobID)

	w = s.do(t, http.MethodGet, "/api/imports/"+queued.JobID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	done := decode[bookmark.Progress](t, w)
	assert.Equal(t, bookmark.ImportDone, done.State)
	assert.Equal(t, 3, done.Processed)
	assert.Equal(t, 3, done.Created)

	list := decode[bookmarkList](t, s.do(t, http.MethodGet, "/api/bookmarks", nil))
	assert.Equal(t, 3, list.Total)

	w = s.do(t, http.MethodPost, "/api/imports/"+queued.JobID+"/stop", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/api/imports/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	again := decode[PreviewResponse](t, s.upload(t, researchFile))
	assert.Equal(t, 3, again.Duplicates)

	w = s.do(t, http.MethodPost, "/api/imports", ImportRequest{Entries: again.Entries})
	assert.Equal(t, http.StatusBadRequest, w.Code, "every duplicate defaults to skip")

	w = s.do(t, http.MethodPost, "/api/imports", ImportRequest{
		Entries:          again.Entries,
		DuplicateActions: []DuplicateAction{{Action: "explode"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartImport_QueuedJobBlocksSecond(t *testing.T) {
	s := setupServer(t)
	s.scheduler.hold = true

	preview := decode[PreviewResponse](t, s.upload(t, researchFile))

	w := s.do(t, http.MethodPost, "/api/imports", ImportRequest{Entries: preview.Entries})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/imports", ImportRequest{Entries: preview.Entries})
	assert.Equal(t, http.StatusConflict, w.Code, "a queued job holds the import slot")

	require.Len(t, s.scheduler.held, 1)
	require.NoError(t, s.scheduler.held[0].Execute(context.Background()))

	w = s.do(t, http.MethodPost, "/api/imports", ImportRequest{Entries: preview.Entries})
	assert.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Len(t, s.scheduler.held, 2)
}

func TestListIcons(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, http.MethodGet, "/api/icons", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "folder", body["default"])
}
