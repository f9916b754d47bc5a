package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/reway/app/bookmark"
)

func (h *Handler) ListGroups(c *gin.Context) {
	groups := h.workspace.Groups()

	out := make([]GroupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, toGroupResponse(g))
	}

	c.JSON(http.StatusOK, gin.H{
		"groups": out,
		"total":  len(out),
	})
}

// CreateGroup picks an icon from the group name when none is given.
func (h *Handler) CreateGroup(c *gin.Context) {
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	icon := h.icons.Suggest(req.Name)
	if req.Icon != "" {
		icon = h.icons.Resolve(req.Icon)
	}

	group, err := h.workspace.CreateGroup(c.Request.Context(), req.Name, icon, req.Color)
	if err != nil {
		slog.Error("Failed to create group", "name", req.Name, "error", err)
		c.JSON(statusFor(err), gin.H{"error": "Failed to create group", "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, toGroupResponse(group))
}

func (h *Handler) UpdateGroup(c *gin.Context) {
	id := c.Param("id")

	var req UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	patch := bookmark.GroupPatch{
		Name:       req.Name,
		Color:      req.Color,
		ClearColor: req.ClearColor,
	}
	if req.Icon != nil {
		icon := h.icons.Resolve(*req.Icon)
		patch.Icon = &icon
	}

	group, err := h.workspace.EditGroup(c.Request.Context(), id, patch)
	if err != nil {
		slog.Error("Failed to update group", "group_id", id, "error", err)
		c.JSON(statusFor(err), gin.H{"error": "Failed to update group"})
		return
	}

	c.JSON(http.StatusOK, toGroupResponse(group))
}

func (h *Handler) DeleteGroup(c *gin.Context) {
	id := c.Param("id")

	if err := h.workspace.DeleteGroup(c.Request.Context(), id); err != nil {
		slog.Error("Failed to delete group", "group_id", id, "error", err)
		c.JSON(statusFor(err), gin.H{"error": "Failed to delete group"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) ReorderGroups(c *gin.Context) {
	var req OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	ids := req.orderedIDs()
	if len(ids) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No group ids given"})
		return
	}

	if err := h.workspace.ReorderGroups(c.Request.Context(), ids); err != nil {
		slog.Error("Failed to reorder groups", "count", len(ids), "error", err)
		c.JSON(statusFor(err), gin.H{"error": "Failed to reorder groups"})
		return
	}

	h.ListGroups(c)
}

// ReorderFolder orders the bookmarks inside one group. "ungrouped" orders
// the bookmarks without a group.
func (h *Handler) ReorderFolder(c *gin.Context) {
	id := c.Param("id")

	var groupID *string
	if id != ungroupedParam {
		if _, ok := h.workspace.Group(id); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
			return
		}
		groupID = &id
	}

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

	if err := h.workspace.ReorderFolder(c.Request.Context(), groupID, ids); err != nil {
		slog.Error("Failed to reorder folder", "group_id", id, "count", len(ids), "error", err)
		c.JSON(statusFor(err), gin.H{"error": "Failed to reorder folder"})
		return
	}

	rows := h.workspace.FolderView(groupID)
	c.JSON(http.StatusOK, gin.H{"bookmarks": toBookmarkResponses(rows)})
}
