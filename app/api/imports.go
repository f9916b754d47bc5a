package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lysyi3m/reway/app/bookmark"
	"github.com/lysyi3m/reway/app/tasks"
)

// PreviewImport parses an uploaded bookmark file and marks entries that are
// already saved. Nothing is written.
func (h *Handler) PreviewImport(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing bookmark file", "details": err.Error()})
		return
	}
	defer file.Close()

	if header.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Bookmark file too large"})
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read bookmark file", "details": err.Error()})
		return
	}
	if len(data) > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Bookmark file too large"})
		return
	}

	entries, err := h.parser.Run(data)
	if err != nil {
		if errors.Is(err, bookmark.ErrNoBookmarks) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "No bookmarks found in file"})
			return
		}
		slog.Error("Failed to parse bookmark file", "filename", header.Filename, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse bookmark file", "details": err.Error()})
		return
	}

	response := PreviewResponse{Total: len(entries)}

	entries, warning := bookmark.AnnotateDuplicates(c.Request.Context(), h.bookmarkRepo, entries)
	if warning != nil {
		slog.Warn("Duplicate check failed", "filename", header.Filename, "error", warning)
		response.Warning = "Could not check for duplicates; all bookmarks are treated as new"
	}

	for _, entry := range entries {
		if entry.IsDuplicate {
			response.Duplicates++
		}
	}
	response.Entries = entries
	response.Groups = bookmark.Summarize(entries)

	slog.Info("Import previewed", "filename", header.Filename, "entries", response.Total, "duplicates", response.Duplicates, "groups", len(response.Groups))

	c.JSON(http.StatusOK, response)
}

// StartImport queues an import job for the chosen entries and returns its
// id; progress is polled from GetImport.
func (h *Handler) StartImport(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if h.tracker.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": "An import is already running"})
		return
	}

	entries := make([]bookmark.Entry, 0, len(req.Entries))
	for _, entry := range req.Entries {
		if !bookmark.IsValidURL(entry.URL) {
			continue
		}
		entry.NormalizedURL = bookmark.NormalizeURL(entry.URL)
		if entry.GroupName == "" {
			entry.GroupName = bookmark.UngroupedName
		}
		if entry.Action == "" {
			entry.Action = bookmark.ActionAdd
		}
		if !entry.Action.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid action", "url": entry.URL})
			return
		}
		entries = append(entries, entry)
	}

	for _, da := range req.DuplicateActions {
		if err := bookmark.SetDuplicateAction(entries, da.Group, da.Action); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid duplicate action", "details": err.Error()})
			return
		}
	}

	entries = bookmark.FilterForImport(entries, req.SelectedGroups)
	if len(entries) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to import"})
		return
	}

	ctx := c.Request.Context()
	jobID := uuid.NewString()

	progress, err := h.tracker.Queue(ctx, jobID, len(entries))
	if errors.Is(err, tasks.ErrImportRunning) {
		c.JSON(http.StatusConflict, gin.H{"error": "An import is already running"})
		return
	}
	if err != nil {
		slog.Error("Failed to queue import", "job_id", jobID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue import"})
		return
	}

	task := tasks.NewImportTask(jobID, entries, h.groupRepo, h.bookmarkRepo, h.enricher, h.workspace,
		h.tracker, h.importConcurrency, h.icons.Default())
	if err := h.scheduler.EnqueueTask(task); err != nil {
		h.tracker.Release(jobID)
		slog.Error("Error enqueueing import task", "job_id", jobID, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to enqueue import", "details": err.Error()})
		return
	}

	slog.Info("Import queued", "job_id", jobID, "entries", len(entries))

	c.JSON(http.StatusAccepted, progress)
}

func (h *Handler) GetImport(c *gin.Context) {
	jobID := c.Param("id")

	progress, err := h.tracker.Progress(c.Request.Context(), jobID)
	if err != nil {
		slog.Error("Failed to get import progress", "job_id", jobID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get import progress"})
		return
	}
	if progress == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Import not found"})
		return
	}

	c.JSON(http.StatusOK, progress)
}

func (h *Handler) StopImport(c *gin.Context) {
	jobID := c.Param("id")

	err := h.tracker.Stop(c.Request.Context(), jobID)
	switch {
	case errors.Is(err, tasks.ErrImportNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Import not found"})
		return
	case errors.Is(err, tasks.ErrImportFinished):
		c.JSON(http.StatusConflict, gin.H{"error": "Import already finished"})
		return
	case err != nil:
		slog.Error("Failed to stop import", "job_id", jobID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to stop import"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID, "stopping": true})
}
