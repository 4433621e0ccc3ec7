package main

import (
	"context"
	"testing"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kir-gadjello/aperture/apitest"
	"github.com/kir-gadjello/aperture/gallery"
)

func newTestGalleryTui(t *testing.T) (galleryTui, *apitest.Server) {
	t.Helper()
	srv := apitest.New(t)
	lister := gallery.StaticLister{Folder: "cats", Files: []string{"a.jpg", "b.jpg"}}
	m := newGalleryTui(context.Background(), gallery.NewClient(srv.URL, nil), lister, "cats")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(galleryTui), srv
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func itemNames(l list.Model) []string {
	var out []string
	for _, it := range l.Items() {
		out = append(out, string(it.(galleryItem)))
	}
	return out
}

func TestGalleryTuiOpensFolder(t *testing.T) {
	m, _ := newTestGalleryTui(t)
	assert.Equal(t, modeImages, m.mode)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, itemNames(m.images))
	assert.Equal(t, []string{"cats"}, itemNames(m.folders))

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(galleryTui)
	assert.Equal(t, modeFolders, m.mode)
	assert.Empty(t, m.ctrl.Page().Folder)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(galleryTui)
	assert.Equal(t, modeImages, m.mode)
	assert.Equal(t, "cats", m.ctrl.Page().Folder)
}

func TestGalleryTuiDeleteImage(t *testing.T) {
	t.Run("Confirmed", func(t *testing.T) {
		m, srv := newTestGalleryTui(t)
		srv.JSON("POST /api/delete_image", map[string]bool{"ok": true})

		next, cmd := m.Update(key("d"))
		m = next.(galleryTui)
		assert.Nil(t, cmd)
		assert.Equal(t, modeConfirm, m.mode)
		assert.Contains(t, m.View(), gallery.AskDeleteImage)

		m = drive(t, m, key("y")).(galleryTui)
		assert.Equal(t, modeImages, m.mode)
		assert.False(t, m.busy)
		assert.Empty(t, m.alert)
		assert.Equal(t, []string{"b.jpg"}, itemNames(m.images))

		reqs := srv.Requests()
		require.Len(t, reqs, 1)
		assert.Equal(t, map[string]interface{}{"folder": "cats", "filename": "a.jpg"}, reqs[0].Body)
	})

	t.Run("Declined", func(t *testing.T) {
		m, srv := newTestGalleryTui(t)
		next, _ := m.Update(key("d"))
		next, cmd := next.Update(key("n"))
		m = next.(galleryTui)
		assert.Nil(t, cmd)
		assert.Equal(t, modeImages, m.mode)
		assert.Equal(t, []string{"a.jpg", "b.jpg"}, itemNames(m.images))
		assert.Empty(t, srv.Requests())
	})

	t.Run("Failed", func(t *testing.T) {
		m, srv := newTestGalleryTui(t)
		srv.JSON("POST /api/delete_image", map[string]bool{"ok": false})

		next, _ := m.Update(key("d"))
		m = drive(t, next, key("y")).(galleryTui)
		assert.Equal(t, gallery.MsgDeleteImageFail, m.alert)
		assert.Equal(t, []string{"a.jpg", "b.jpg"}, itemNames(m.images))
		assert.Contains(t, m.View(), gallery.MsgDeleteImageFail)
	})
}

func TestGalleryTuiDeleteFolder(t *testing.T) {
	m, srv := newTestGalleryTui(t)
	srv.JSON("POST /api/delete_folder", map[string]bool{"ok": true})

	next, _ := m.Update(key("D"))
	m = next.(galleryTui)
	assert.Contains(t, m.View(), gallery.AskDeleteFolder)

	m = drive(t, m, tea.KeyMsg{Type: tea.KeyEnter}).(galleryTui)
	assert.Equal(t, modeFolders, m.mode)
	assert.Empty(t, m.ctrl.Page().Folder)
	assert.Equal(t, 1, srv.Count("POST /api/delete_folder"))
}

func TestGalleryTuiExif(t *testing.T) {
	m, srv := newTestGalleryTui(t)
	srv.JSON("GET /api/image_exif", map[string]interface{}{"exif": map[string]string{"Model": "X100V"}})

	m = drive(t, m, key("x")).(galleryTui)
	require.Equal(t, modeExif, m.mode)
	view := m.View()
	assert.Contains(t, view, "EXIF: a.jpg")
	assert.Contains(t, view, "X100V")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(galleryTui)
	assert.Equal(t, modeImages, m.mode)
	require.NotNil(t, m.ctrl.Modal())
	assert.False(t, m.ctrl.Modal().Open)
}

func TestGalleryTuiCreateFolder(t *testing.T) {
	m, srv := newTestGalleryTui(t)
	srv.JSON("POST /api/create_folder", map[string]bool{"ok": true})

	next, _ := m.Update(key("n"))
	m = next.(galleryTui)
	require.Equal(t, modeNewFolder, m.mode)

	// Keys are swallowed while the name is typed.
	next, _ = m.Update(key("q"))
	m = next.(galleryTui)
	assert.Equal(t, modeNewFolder, m.mode)

	m.input.SetValue("dogs")
	m = drive(t, m, tea.KeyMsg{Type: tea.KeyEnter}).(galleryTui)
	assert.Equal(t, modeImages, m.mode)
	assert.Empty(t, m.alert)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, map[string]interface{}{"name": "dogs"}, reqs[0].Body)
}

func TestGalleryTuiCreateFolderBlank(t *testing.T) {
	m, srv := newTestGalleryTui(t)

	next, _ := m.Update(key("n"))
	m = drive(t, next, tea.KeyMsg{Type: tea.KeyEnter}).(galleryTui)
	assert.Equal(t, gallery.MsgEnterFolderName, m.alert)
	assert.Empty(t, srv.Requests())
}

func TestGalleryTuiIgnoresKeysWhileBusy(t *testing.T) {
	m, srv := newTestGalleryTui(t)
	srv.JSON("GET /api/image_exif", map[string]interface{}{})

	next, cmd := m.Update(key("x"))
	require.NotNil(t, cmd)
	m = next.(galleryTui)
	assert.True(t, m.busy)
	assert.Contains(t, m.View(), "Working...")

	_, cmd = m.Update(key("d"))
	assert.Nil(t, cmd)
}
