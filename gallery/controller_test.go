package gallery

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kir-gadjello/aperture/apitest"
)

type stubUI struct {
	mu       sync.Mutex
	answer   bool
	asked    []string
	alerts   []string
	reloads  int
	navigate []string
}

func (s *stubUI) Alert(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, msg)
}

func (s *stubUI) Confirm(q string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asked = append(s.asked, q)
	return s.answer
}

func (s *stubUI) Reload() { s.reloads++ }

func (s *stubUI) Navigate(path string) { s.navigate = append(s.navigate, path) }

func newController(t *testing.T, answer bool) (*Controller, *apitest.Server, *stubUI) {
	t.Helper()
	srv := apitest.New(t)
	ui := &stubUI{answer: answer}
	page := Page{Folder: "trips", Images: []string{"c.jpg", "b.jpg", "a.jpg"}}
	return NewController(NewClient(srv.URL, nil), ui, ui, page), srv, ui
}

func TestCreateFolder(t *testing.T) {
	ctx := context.Background()

	t.Run("Empty Name", func(t *testing.T) {
		c, srv, ui := newController(t, true)
		assert.False(t, c.CreateFolder(ctx, "   "))
		assert.Equal(t, []string{MsgEnterFolderName}, ui.alerts)
		assert.Empty(t, srv.Requests())
	})

	t.Run("Success Reloads", func(t *testing.T) {
		c, srv, ui := newController(t, true)
		srv.JSON("POST /api/create_folder", map[string]bool{"ok": true})

		assert.True(t, c.CreateFolder(ctx, " Japan "))
		assert.Equal(t, 1, ui.reloads)
		assert.Empty(t, ui.alerts)
		assert.Equal(t, map[string]interface{}{"name": "Japan"}, srv.Requests()[0].Body)
	})

	t.Run("Not OK", func(t *testing.T) {
		c, srv, ui := newController(t, true)
		srv.JSON("POST /api/create_folder", map[string]bool{"ok": false})

		assert.False(t, c.CreateFolder(ctx, "Japan"))
		assert.Equal(t, []string{MsgCreateFailed}, ui.alerts)
		assert.Equal(t, 0, ui.reloads)
	})

	t.Run("Unparsable Body", func(t *testing.T) {
		c, srv, ui := newController(t, true)
		srv.On("POST /api/create_folder", apitest.Response{RawBody: "<html>oops</html>"})

		assert.False(t, c.CreateFolder(ctx, "Japan"))
		assert.Equal(t, []string{MsgCreateFailed}, ui.alerts)
	})

	t.Run("Transport Error", func(t *testing.T) {
		c, srv, ui := newController(t, true)
		srv.Close()

		assert.False(t, c.CreateFolder(ctx, "Japan"))
		assert.Equal(t, []string{MsgCreateFailed}, ui.alerts)
	})
}

func TestDeleteFolder(t *testing.T) {
	ctx := context.Background()

	t.Run("Declined", func(t *testing.T) {
		c, srv, ui := newController(t, false)
		assert.False(t, c.DeleteFolder(ctx))
		assert.Equal(t, []string{AskDeleteFolder}, ui.asked)
		assert.Empty(t, srv.Requests())
	})

	t.Run("Success Navigates To Root", func(t *testing.T) {
		c, srv, ui := newController(t, true)
		srv.JSON("POST /api/delete_folder", map[string]bool{"ok": true})

		assert.True(t, c.DeleteFolder(ctx))
		assert.Equal(t, []string{RootPath}, ui.navigate)
		assert.Equal(t, map[string]interface{}{"folder": "trips"}, srv.Requests()[0].Body)
	})

	t.Run("Failure Alerts", func(t *testing.T) {
		c, srv, ui := newController(t, true)
		srv.On("POST /api/delete_folder", apitest.Response{Status: http.StatusInternalServerError, Body: map[string]bool{"ok": false}})

		assert.False(t, c.DeleteFolder(ctx))
		assert.Equal(t, []string{MsgDeleteFolderFail}, ui.alerts)
		assert.Empty(t, ui.navigate)
	})
}

func TestDeleteImage(t *testing.T) {
	ctx := context.Background()

	t.Run("Removes Exactly One", func(t *testing.T) {
		c, srv, ui := newController(t, true)
		srv.JSON("POST /api/delete_image", map[string]bool{"ok": true})

		assert.True(t, c.DeleteImage(ctx, "b.jpg"))
		assert.Equal(t, []string{"c.jpg", "a.jpg"}, c.Page().Images)
		assert.Equal(t, []string{AskDeleteImage}, ui.asked)
		assert.Equal(t, map[string]interface{}{"folder": "trips", "filename": "b.jpg"}, srv.Requests()[0].Body)
	})

	t.Run("Failure Keeps Page", func(t *testing.T) {
		c, srv, ui := newController(t, true)
		srv.JSON("POST /api/delete_image", map[string]bool{"ok": false})

		assert.False(t, c.DeleteImage(ctx, "b.jpg"))
		assert.Equal(t, []string{"c.jpg", "b.jpg", "a.jpg"}, c.Page().Images)
		assert.Equal(t, []string{MsgDeleteImageFail}, ui.alerts)
	})

	t.Run("Declined", func(t *testing.T) {
		c, srv, _ := newController(t, false)

		assert.False(t, c.DeleteImage(ctx, "b.jpg"))
		assert.Len(t, c.Page().Images, 3)
		assert.Empty(t, srv.Requests())
	})

	t.Run("Page Copy Is Independent", func(t *testing.T) {
		c, srv, _ := newController(t, true)
		srv.JSON("POST /api/delete_image", map[string]bool{"ok": true})

		before := c.Page()
		require.True(t, c.DeleteImage(ctx, "c.jpg"))
		assert.Equal(t, []string{"c.jpg", "b.jpg", "a.jpg"}, before.Images)
		assert.Equal(t, []string{"b.jpg", "a.jpg"}, c.Page().Images)
	})
}

func TestViewExif(t *testing.T) {
	ctx := context.Background()
	c, srv, ui := newController(t, true)
	srv.On("GET /api/image_exif",
		apitest.Response{Body: map[string]interface{}{"exif": map[string]interface{}{"Model": "X100V"}}},
		apitest.Response{Body: map[string]interface{}{}},
	)

	assert.Nil(t, c.Modal())

	require.True(t, c.ViewExif(ctx, "a.jpg"))
	m := c.Modal()
	require.NotNil(t, m)
	assert.True(t, m.Open)
	assert.Equal(t, "a.jpg", m.Filename)
	assert.Equal(t, "{\n  \"Model\": \"X100V\"\n}", m.Text)

	reqs := srv.Requests()
	assert.Equal(t, map[string]string{"folder": "trips", "filename": "a.jpg"}, reqs[0].Query)

	c.CloseModal()
	assert.False(t, c.Modal().Open)

	require.True(t, c.ViewExif(ctx, "b.jpg"))
	assert.True(t, c.Modal().Open)
	assert.Equal(t, MsgNoExif, c.Modal().Text)
	assert.Empty(t, ui.alerts)
}

func TestViewExifFalsyValues(t *testing.T) {
	for _, raw := range []string{`{"exif": false}`, `{"exif": 0}`, `{"exif": ""}`, `{"exif": null}`, `not json`} {
		t.Run(raw, func(t *testing.T) {
			c, srv, ui := newController(t, true)
			srv.On("GET /api/image_exif", apitest.Response{RawBody: raw})

			require.True(t, c.ViewExif(context.Background(), "a.jpg"))
			assert.Equal(t, MsgNoExif, c.Modal().Text)
			assert.Empty(t, ui.alerts)
		})
	}
}

func TestViewExifTransportError(t *testing.T) {
	c, srv, ui := newController(t, true)
	srv.Close()

	assert.False(t, c.ViewExif(context.Background(), "a.jpg"))
	assert.Nil(t, c.Modal())
	assert.Equal(t, []string{MsgExifFailed}, ui.alerts)
}

func TestDirLister(t *testing.T) {
	root := t.TempDir()
	must := func(err error) { require.NoError(t, err) }
	must(os.MkdirAll(filepath.Join(root, "images", "Japan", "Raw"), 0755))
	must(os.MkdirAll(filepath.Join(root, "images", "school"), 0755))
	for _, name := range []string{"a.jpg", "b.PNG", "notes.txt", "c.webp"} {
		must(os.WriteFile(filepath.Join(root, "images", "Japan", name), []byte("x"), 0644))
	}

	l := DirLister{Root: root}
	folders, err := l.Folders()
	require.NoError(t, err)
	assert.Equal(t, []string{"Japan", "Japan/Raw", "school"}, folders)

	images, err := l.Images("Japan")
	require.NoError(t, err)
	assert.Equal(t, []string{"c.webp", "b.PNG", "a.jpg"}, images)

	_, err = l.Images("missing")
	assert.Error(t, err)
}

func TestStaticLister(t *testing.T) {
	l := StaticLister{Folder: "trips", Files: []string{"a.jpg"}}
	folders, err := l.Folders()
	require.NoError(t, err)
	assert.Equal(t, []string{"trips"}, folders)

	images, err := l.Images("trips")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg"}, images)

	images, err = l.Images("other")
	require.NoError(t, err)
	assert.Empty(t, images)
}
