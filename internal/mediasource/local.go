package mediasource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// LocalDomain is the domain local media is published under.
const LocalDomain = "media_source"

// LocalSource serves files from named media directories. The identifier of
// an item is "<dir>/<relative path>", e.g. "local/doorbell/snapshot.jpg".
type LocalSource struct {
	dirs      map[string]string
	publicURL string
}

// NewLocalSource creates a source over dirs (name → filesystem path).
// publicURL is the externally reachable base URL of this service.
func NewLocalSource(dirs map[string]string, publicURL string) *LocalSource {
	copied := make(map[string]string, len(dirs))
	for name, dir := range dirs {
		copied[name] = dir
	}
	return &LocalSource{
		dirs:      copied,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// Resolve implements Source.
func (s *LocalSource) Resolve(_ context.Context, item Item) (PlayMedia, error) {
	dirName, rel, err := s.split(item.Identifier)
	if err != nil {
		return PlayMedia{}, err
	}

	full := filepath.Join(s.dirs[dirName], filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return PlayMedia{}, fmt.Errorf("%s: %w", item.Identifier, ErrMediaNotFound)
	}
	if err != nil {
		return PlayMedia{}, fmt.Errorf("stat %s: %w", item.Identifier, err)
	}
	if info.IsDir() {
		return PlayMedia{}, fmt.Errorf("%s is a directory: %w", item.Identifier, ErrMediaNotFound)
	}

	return PlayMedia{
		URL:      s.publicURL + "/media/" + url.PathEscape(dirName) + "/" + escapePath(rel),
		MimeType: mimeTypeFor(rel),
	}, nil
}

// split validates "<dir>/<path>" and rejects paths leaving the directory.
func (s *LocalSource) split(identifier string) (string, string, error) {
	dirName, rel, ok := strings.Cut(identifier, "/")
	if !ok || rel == "" {
		return "", "", fmt.Errorf("identifier %q must be <dir>/<path>: %w", identifier, ErrMediaNotFound)
	}
	if _, ok := s.dirs[dirName]; !ok {
		return "", "", fmt.Errorf("unknown media directory %q: %w", dirName, ErrUnknownMediaSource)
	}
	if !filepath.IsLocal(filepath.FromSlash(rel)) {
		return "", "", fmt.Errorf("invalid media path %q: %w", rel, ErrMediaNotFound)
	}
	return dirName, path.Clean(rel), nil
}

// DirNames returns the configured directory names in sorted order.
func (s *LocalSource) DirNames() []string {
	names := make([]string, 0, len(s.dirs))
	for name := range s.dirs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FileServer returns a handler serving one media directory. Mount it under
// "/media/<dir>/" with that prefix stripped.
func (s *LocalSource) FileServer(dirName string) (http.Handler, bool) {
	dir, ok := s.dirs[dirName]
	if !ok {
		return nil, false
	}
	return http.FileServer(http.Dir(dir)), true
}

func escapePath(rel string) string {
	parts := strings.Split(rel, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// mediaTypes covers formats missing from Go's built-in table on hosts
// without a mime.types file.
var mediaTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".txt":  "text/plain",
}

func mimeTypeFor(name string) string {
	if t, ok := mediaTypes[strings.ToLower(path.Ext(name))]; ok {
		return t
	}
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		// Drop parameters such as "; charset=utf-8"
		if base, _, err := mime.ParseMediaType(t); err == nil {
			return base
		}
		return t
	}
	return "application/octet-stream"
}
