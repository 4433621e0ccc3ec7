package gallery

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/kir-gadjello/aperture/agent"
)

// Messages shown to the user.
const (
	MsgEnterFolderName  = "Enter a folder name"
	MsgCreateFailed     = "Error creating folder"
	MsgDeleteFolderFail = "Error deleting folder"
	MsgDeleteImageFail  = "Error removing image"
	MsgExifFailed       = "Error loading EXIF"
	MsgNoExif           = "No EXIF"

	AskDeleteFolder = "Delete folder and all images?"
	AskDeleteImage  = "Remove this image?"

	// RootPath is where the browser goes after its folder is deleted.
	RootPath = "/gallery"
)

// API is the part of Client the controller needs.
type API interface {
	CreateFolder(ctx context.Context, name string) (bool, error)
	DeleteFolder(ctx context.Context, folder string) (bool, error)
	DeleteImage(ctx context.Context, folder, filename string) (bool, error)
	Exif(ctx context.Context, folder, filename string) (json.RawMessage, error)
}

// Prompter asks and tells the user things. Confirm blocks until answered.
type Prompter interface {
	Alert(message string)
	Confirm(question string) bool
}

// Navigator refreshes or leaves the current view.
type Navigator interface {
	Reload()
	Navigate(path string)
}

// Page is what the user currently sees: one folder and its images.
type Page struct {
	Folder string
	Images []string
}

// Modal is the EXIF viewer. The controller owns exactly one.
type Modal struct {
	Filename string
	Text     string
	Open     bool
}

// Controller implements the gallery actions. Its methods may be called from
// any goroutine; page and modal access is serialised.
type Controller struct {
	api    API
	prompt Prompter
	nav    Navigator

	mu    sync.Mutex
	page  Page
	modal *Modal
}

func NewController(api API, prompt Prompter, nav Navigator, page Page) *Controller {
	return &Controller{api: api, prompt: prompt, nav: nav, page: clonePage(page)}
}

// Page returns a copy of the current page.
func (c *Controller) Page() Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clonePage(c.page)
}

// SetPage replaces the page, e.g. after a reload.
func (c *Controller) SetPage(p Page) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.page = clonePage(p)
}

// Modal returns a copy of the EXIF modal, or nil if it was never opened.
func (c *Controller) Modal() *Modal {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.modal == nil {
		return nil
	}
	m := *c.modal
	return &m
}

// CloseModal hides the EXIF modal; it is reused on the next ViewExif.
func (c *Controller) CloseModal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.modal != nil {
		c.modal.Open = false
	}
}

// CreateFolder creates name and reloads on success.
func (c *Controller) CreateFolder(ctx context.Context, name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		c.prompt.Alert(MsgEnterFolderName)
		return false
	}

	ok, err := c.api.CreateFolder(ctx, name)
	if err != nil || !ok {
		c.prompt.Alert(MsgCreateFailed)
		return false
	}
	c.nav.Reload()
	return true
}

// DeleteFolder deletes the page's folder after confirmation and navigates
// back to the gallery root.
func (c *Controller) DeleteFolder(ctx context.Context) bool {
	if !c.prompt.Confirm(AskDeleteFolder) {
		return false
	}

	folder := c.Page().Folder
	ok, err := c.api.DeleteFolder(ctx, folder)
	if err != nil || !ok {
		c.prompt.Alert(MsgDeleteFolderFail)
		return false
	}
	c.nav.Navigate(RootPath)
	return true
}

// DeleteImage deletes filename from the page's folder after confirmation and
// drops it from the page.
func (c *Controller) DeleteImage(ctx context.Context, filename string) bool {
	if !c.prompt.Confirm(AskDeleteImage) {
		return false
	}

	folder := c.Page().Folder
	ok, err := c.api.DeleteImage(ctx, folder, filename)
	if err != nil || !ok {
		c.prompt.Alert(MsgDeleteImageFail)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, name := range c.page.Images {
		if name == filename {
			c.page.Images = append(c.page.Images[:i:i], c.page.Images[i+1:]...)
			break
		}
	}
	return true
}

// ViewExif loads the EXIF of filename into the modal and opens it.
func (c *Controller) ViewExif(ctx context.Context, filename string) bool {
	folder := c.Page().Folder
	exif, err := c.api.Exif(ctx, folder, filename)
	if err != nil {
		c.prompt.Alert(MsgExifFailed)
		return false
	}

	text := MsgNoExif
	if exif != nil {
		text = agent.Indent(exif)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.modal == nil {
		c.modal = &Modal{}
	}
	c.modal.Filename = filename
	c.modal.Text = text
	c.modal.Open = true
	return true
}

func clonePage(p Page) Page {
	images := make([]string, len(p.Images))
	copy(images, p.Images)
	return Page{Folder: p.Folder, Images: images}
}
