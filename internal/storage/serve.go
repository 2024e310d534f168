package storage

import (
	"io/fs"
	"net/http"
	"path"
	"path/filepath"
	"strings"
)

// Handler serves placed files under their public prefix. Directory listings
// and the incoming spool area are never served, so only files that passed
// the submission workflow are reachable.
func (l *Local) Handler() http.Handler {
	files := http.FileServer(placedFS{root: http.Dir(l.root), hidden: l.hiddenSpool()})
	if l.publicPrefix == "" {
		return files
	}
	return http.StripPrefix(l.publicPrefix, files)
}

// PublicPrefix is the URL prefix Handler expects.
func (l *Local) PublicPrefix() string {
	return l.publicPrefix
}

// hiddenSpool returns the incoming dir as a slash path under root, or "" when
// it lives elsewhere.
func (l *Local) hiddenSpool() string {
	rel, err := filepath.Rel(l.root, l.incoming)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return "/" + filepath.ToSlash(rel)
}

type placedFS struct {
	root   http.FileSystem
	hidden string
}

func (p placedFS) Open(name string) (http.File, error) {
	clean := path.Clean("/" + name)
	if p.hidden != "" && (clean == p.hidden || strings.HasPrefix(clean, p.hidden+"/")) {
		return nil, fs.ErrNotExist
	}
	f, err := p.root.Open(clean)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}
