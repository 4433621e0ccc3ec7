package gallery

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Lister produces pages for the gallery browser.
type Lister interface {
	Folders() ([]string, error)
	Images(folder string) ([]string, error)
}

// DirLister reads a local copy of the server's data directory, where images
// live under <root>/images/<folder>/.
type DirLister struct {
	Root string
}

func (d DirLister) imagesDir() string {
	return filepath.Join(d.Root, "images")
}

// Folders lists every directory under images/, nested ones as "a/b".
func (d DirLister) Folders() ([]string, error) {
	base := d.imagesDir()
	var folders []string
	err := filepath.WalkDir(base, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() || path == base {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		folders = append(folders, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	sort.Strings(folders)
	return folders, nil
}

// Images lists image files directly inside folder, newest name first as the
// server's gallery page does.
func (d DirLister) Images(folder string) ([]string, error) {
	clean := filepath.Clean("/" + folder)
	entries, err := os.ReadDir(filepath.Join(d.imagesDir(), clean))
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}

	var images []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if IsImage(e.Name()) {
			images = append(images, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(images)))
	return images, nil
}

// StaticLister serves a fixed page, for when no data directory is available.
type StaticLister struct {
	Folder string
	Files  []string
}

func (s StaticLister) Folders() ([]string, error) {
	if s.Folder == "" {
		return nil, nil
	}
	return []string{s.Folder}, nil
}

func (s StaticLister) Images(folder string) ([]string, error) {
	if folder != s.Folder {
		return nil, nil
	}
	out := make([]string, len(s.Files))
	copy(out, s.Files)
	return out, nil
}

// IsImage guesses from the file extension.
func IsImage(name string) bool {
	return strings.HasPrefix(mime.TypeByExtension(strings.ToLower(filepath.Ext(name))), "image/")
}
