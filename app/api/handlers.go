package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/reway/app/bookmark"
	"github.com/lysyi3m/reway/app/database"
	"github.com/lysyi3m/reway/app/icons"
	"github.com/lysyi3m/reway/app/tasks"
	"github.com/lysyi3m/reway/app/workspace"
)

const ungroupedParam = "ungrouped"

func NewHandler(ws *workspace.Workspace, bookmarkRepo database.BookmarkRepositoryInterface,
	groupRepo database.GroupRepositoryInterface, enricher bookmark.Enricher,
	scheduler tasks.TaskSchedulerInterface, tracker *tasks.ImportTracker,
	iconRegistry *icons.Registry, importConcurrency int, version string) *Handler {
	return &Handler{
		workspace:         ws,
		bookmarkRepo:      bookmarkRepo,
		groupRepo:         groupRepo,
		parser:            bookmark.NewParser(),
		enricher:          enricher,
		scheduler:         scheduler,
		tracker:           tracker,
		icons:             iconRegistry,
		importConcurrency: importConcurrency,
		version:           version,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"version":   h.version,
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"bookmarks": len(h.workspace.Bookmarks()),
		"groups":    len(h.workspace.Groups()),
		"importing": h.tracker.Running(),
	})
}

// ListBookmarks serves the all-bookmarks view, or one group's view when
// ?group= is set ("ungrouped" for bookmarks without a group).
func (h *Handler) ListBookmarks(c *gin.Context) {
	var rows []bookmark.Bookmark

	if group, ok := c.GetQuery("group"); ok {
		var groupID *string
		if group != ungroupedParam {
			if _, found := h.workspace.Group(group); !found {
				c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
				return
			}
			groupID = &group
		}
		rows = h.workspace.FolderView(groupID)
	} else {
		rows = h.workspace.Bookmarks()
	}

	c.JSON(http.StatusOK, gin.H{
		"bookmarks": toBookmarkResponses(rows),
		"total":     len(rows),
	})
}

func (h *Handler) GetBookmark(c *gin.Context) {
	id := c.Param("id")

	row, ok := h.workspace.Bookmark(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Bookmark not found"})
		return
	}

	c.JSON(http.StatusOK, toBookmarkResponse(row))
}

func (h *Handler) CreateBookmark(c *gin.Context) {
	var req CreateBookmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if !bookmark.IsValidURL(req.URL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid URL"})
		return
	}
	if !h.groupExists(req.GroupID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Group not found"})
		return
	}

	row, err := h.workspace.Create(c.Request.Context(), req.URL, req.Title, req.GroupID)
	if err != nil {
		slog.Error("Failed to create bookmark", "url", req.URL, "error", err)
		c.JSON(statusFor(err), gin.H{"error": "Failed to create bookmark"})
		return
	}

	h.enqueueEnrichment(row)

	c.JSON(http.StatusCreated, toBookmarkResponse(row))
}

func (h *Handler) UpdateBookmark(c *gin.Context) {
	id := c.Param("id")

	var req UpdateBookmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	patch := bookmark.Patch{
		Title:       req.Title,
		Description: req.Description,
		URL:         req.URL,
		GroupID:     req.GroupID,
		ClearGroup:  req.ClearGroup,
	}
	if patch.IsEmpty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}
	if patch.URL != nil && !bookmark.IsValidURL(*patch.URL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid URL"})
		return
	}
	if !patch.ClearGroup && !h.groupExists(patch.GroupID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Group not found"})
		return
	}

	row, err := h.workspace.Edit(c.Request.Context(), id, patch)
	if err != nil {
		slog.Error("Failed to update bookmark", "bookmark_id", id, "error", err)
		c.JSON(statusFor(err), gin.H{"error": "Failed to update bookmark"})
		return
	}

	if patch.URL != nil {
		h.enqueueEnrichment(row)
	}

	c.JSON(http.StatusOK, toBookmarkResponse(row))
}

func (h *Handler) DeleteBookmark(c *gin.Context) {
	id := c.Param("id")

	token, err := h.workspace.Delete(c.Request.Context(), id)
	if err != nil {
		slog.Error("Failed to delete bookmark", "bookmark_id", id, "error", err)
		c.JSON(statusFor(err), gin.H{"error": "Failed to delete bookmark"})
		return
	}

	c.JSON(http.StatusOK, token)
}

func (h *Handler) UndoDelete(c *gin.Context) {
	token := c.Param("token")

	row, err := h.workspace.Undo(c.Request.Context(), token)
	if err != nil {
		slog.Warn("Failed to undo delete", "error", err)
		c.JSON(statusFor(err), gin.H{"error": "Failed to undo delete"})
		return
	}

	c.JSON(http.StatusOK, toBookmarkResponse(row))
}

func (h *Handler) ReorderBookmarks(c *gin.Context) {
	var req OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	ids := req.orderedIDs()
	if len(ids) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No bookmark ids given"})
		return
	}

	if err := h.workspace.Reorder(c.Request.Context(), ids); err != nil {
		slog.Error("Failed to reorder bookmarks", "count", len(ids), "error", err)
		c.JSON(statusFor(err), gin.H{"error": "Failed to reorder bookmarks"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookmarks": toBookmarkResponses(h.workspace.Bookmarks())})
}

func (h *Handler) ListIcons(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"default": h.icons.Default(),
		"icons":   h.icons.All(),
	})
}

func (h *Handler) groupExists(groupID *string) bool {
	if groupID == nil {
		return true
	}
	_, ok := h.workspace.Group(*groupID)
	return ok
}

func (h *Handler) enqueueEnrichment(row bookmark.Bookmark) {
	task := tasks.NewEnrichBookmarkTask(row.ID, row.URL, h.enricher, h.workspace)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		// The row stays pending and is picked up again on the next start.
		slog.Warn("Failed to enqueue EnrichBookmarkTask", "bookmark_id", row.ID, "error", err)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, workspace.ErrNotFound), errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workspace.ErrInvalidOrder), errors.Is(err, bookmark.ErrGroupNameEmpty),
		errors.Is(err, bookmark.ErrInvalidTransition):
		return http.StatusBadRequest
	case errors.Is(err, workspace.ErrUndoExpired):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
