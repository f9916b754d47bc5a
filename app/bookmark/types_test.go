package bookmark

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatchApply(t *testing.T) {
	group := "g1"
	b := Bookmark{
		ID:          "b1",
		URL:         "https://old.example.com",
		Title:       "Old",
		GroupID:     &group,
		Status:      StatusFailed,
		ErrorReason: "HTTP 404",
	}

	title := "New"
	edited := Patch{Title: &title}.Apply(b)
	assert.Equal(t, "New", edited.Title)
	assert.Equal(t, StatusFailed, edited.Status)
	assert.Equal(t, "Old", b.Title, "original is untouched")

	url := "HTTPS://New.example.com/"
	edited = Patch{URL: &url}.Apply(b)
	assert.Equal(t, url, edited.URL)
	assert.Equal(t, "https://new.example.com", edited.NormalizedURL)
	assert.Equal(t, StatusPending, edited.Status)
	assert.Empty(t, edited.ErrorReason)

	edited = Patch{ClearGroup: true}.Apply(b)
	assert.Nil(t, edited.GroupID)
	require.NotNil(t, b.GroupID)

	other := "g2"
	edited = Patch{GroupID: &other}.Apply(b)
	require.NotNil(t, edited.GroupID)
	assert.Equal(t, "g2", *edited.GroupID)
	assert.Equal(t, "g1", group)

	assert.True(t, Patch{}.IsEmpty())
	assert.False(t, Patch{ClearGroup: true}.IsEmpty())
}

func TestTempID(t *testing.T) {
	id := NewTempID()
	assert.True(t, IsTempID(id))
	assert.NotEqual(t, id, NewTempID())
	assert.False(t, IsTempID("8d7f0c1e-1111-2222-3333-444455556666"))
}

func TestPatchRevert(t *testing.T) {
	previous := Bookmark{
		ID:            "b1",
		URL:           "https://old.example.com",
		NormalizedURL: "https://old.example.com",
		Title:         "Old",
		Status:        StatusFailed,
		ErrorReason:   "HTTP 404",
	}

	title := "New"
	url := "https://new.example.com"
	patch := Patch{Title: &title, URL: &url}

	current := patch.Apply(previous)
	// a field the patch did not touch changes meanwhile
	current.Description = "Fetched meanwhile"

	reverted := patch.Revert(current, previous)
	assert.Equal(t, "Old", reverted.Title)
	assert.Equal(t, "https://old.example.com", reverted.URL)
	assert.Equal(t, StatusFailed, reverted.Status)
	assert.Equal(t, "HTTP 404", reverted.ErrorReason)
	assert.Equal(t, "Fetched meanwhile", reverted.Description)
}

func TestGroupPatchRevert(t *testing.T) {
	color := "#ff0000"
	previous := Group{ID: "g1", Name: "Research", Icon: "book", Color: &color}

	name := "Papers"
	patch := GroupPatch{Name: &name, ClearColor: true}

	current := patch.Apply(previous)
	current.Icon = "folder"

	reverted := patch.Revert(current, previous)
	assert.Equal(t, "Research", reverted.Name)
	require.NotNil(t, reverted.Color)
	assert.Equal(t, "#ff0000", *reverted.Color)
	assert.Equal(t, "folder", reverted.Icon)
}
