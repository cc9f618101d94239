package server

import (
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/kjk/devrecords/u"
)

// FSHandler serves files from fs.FS (e.g. embed.FS) under URLPrefix
type FSHandler struct {
	fsys      fs.FS
	URLPrefix string
	urls      []string
	paths     []string // same order as urls
	modTime   time.Time
}

func NewFSHandler(fsys fs.FS, urlPrefix string) *FSHandler {
	var urls, paths []string
	err := fs.WalkDir(fsys, ".", func(filePath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		// fs.FS uses "/" as path separator
		urls = append(urls, path.Join(urlPrefix, filePath))
		paths = append(paths, filePath)
		return nil
	})
	u.Must(err)
	u.PanicIf(len(urls) == 0, "no files in fs for '%s'", urlPrefix)
	return &FSHandler{
		fsys:      fsys,
		URLPrefix: urlPrefix,
		urls:      urls,
		paths:     paths,
		modTime:   time.Now(),
	}
}

func (h *FSHandler) URLS() []string {
	return h.urls
}

func (h *FSHandler) Get(uri string) HandlerFunc {
	for i, url := range h.urls {
		// urls are case-insensitive
		if !strings.EqualFold(url, uri) {
			continue
		}
		d, err := fs.ReadFile(h.fsys, h.paths[i])
		u.Must(err)
		serve := MakeServeContent(url, d, h.modTime)
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				w.Header().Set("Allow", "GET, HEAD")
				http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
				return
			}
			w.Header().Set("Content-Type", u.MimeTypeFromFileName(url))
			serve(w, r)
		}
	}
	return nil
}
