// Package storage places uploaded images on the local filesystem, one
// directory per age category, under names derived from the child and email.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"imageref/internal/registration/models"
)

// Placed is the final location of a relocated upload.
type Placed struct {
	Path string
	Name string
}

// File is one stored image as seen by the gallery.
type File struct {
	Category models.Category `json:"category"`
	Name     string          `json:"name"`
	URL      string          `json:"url"`
	Size     int64           `json:"size"`
	ModTime  time.Time       `json:"modTime"`
}

// Local stores files under Root/<category>/ and spools incoming uploads in
// IncomingDir until they are placed.
type Local struct {
	root         string
	incoming     string
	publicPrefix string
}

// NewLocal creates the root, incoming and per-category directories.
func NewLocal(root, incoming, publicPrefix string) (*Local, error) {
	dirs := []string{root, incoming}
	for _, c := range models.Categories() {
		dirs = append(dirs, filepath.Join(root, string(c)))
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir %s: %w", d, err)
		}
	}
	return &Local{root: root, incoming: incoming, publicPrefix: strings.TrimRight(publicPrefix, "/")}, nil
}

// Root returns the directory holding the category folders.
func (l *Local) Root() string {
	return l.root
}

// Spool copies r into a uniquely named file in the incoming directory.
func (l *Local) Spool(r io.Reader, originalName string) (models.Upload, error) {
	f, err := os.CreateTemp(l.incoming, fmt.Sprintf("%d-*%s", time.Now().UnixNano(), Extension(originalName)))
	if err != nil {
		return models.Upload{}, fmt.Errorf("create spool file: %w", err)
	}
	n, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(f.Name())
		return models.Upload{}, fmt.Errorf("spool upload: %w", err)
	}
	return models.Upload{Path: f.Name(), OriginalName: originalName, Size: n}, nil
}

// Place moves upload into its category directory under the deterministic
// name for (childName, email). An existing file with the same name is replaced.
func (l *Local) Place(ctx context.Context, upload models.Upload, category models.Category, childName, email string) (Placed, error) {
	if err := ctx.Err(); err != nil {
		return Placed{}, err
	}
	if !category.IsValid() {
		return Placed{}, fmt.Errorf("unknown category %q", category)
	}
	name := FileName(childName, email, upload.OriginalName)
	dir := filepath.Join(l.root, string(category))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Placed{}, fmt.Errorf("create category dir: %w", err)
	}
	dst := filepath.Join(dir, name)
	if err := move(upload.Path, dst); err != nil {
		return Placed{}, err
	}
	return Placed{Path: dst, Name: name}, nil
}

// Discard removes a spooled upload that will not be placed.
func (l *Local) Discard(upload models.Upload) {
	if upload.Path != "" {
		_ = os.Remove(upload.Path)
	}
}

// List walks every category directory, newest files first within a category.
func (l *Local) List(ctx context.Context) ([]File, error) {
	var out []File
	for _, c := range models.Categories() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries, err := os.ReadDir(filepath.Join(l.root, string(c)))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", c, err)
		}
		var files []File
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			files = append(files, File{
				Category: c,
				Name:     e.Name(),
				URL:      path.Join(l.publicPrefix, string(c), e.Name()),
				Size:     info.Size(),
				ModTime:  info.ModTime(),
			})
		}
		sort.SliceStable(files, func(i, j int) bool { return files[i].ModTime.After(files[j].ModTime) })
		out = append(out, files...)
	}
	return out, nil
}

// move renames src to dst, falling back to copy and delete when the rename
// crosses filesystems.
func move(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".place-*")
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("copy upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close destination: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace destination: %w", err)
	}
	_ = os.Remove(src)
	return nil
}
