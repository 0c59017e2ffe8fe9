package filesystem

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

const indexFile = "/index.html"

// Outcome is the result of mapping a request path onto the document root.
// Escaping the root and a missing file both produce the zero Outcome, so the
// two cannot be told apart from outside.
type Outcome struct {
	Found bool
	Path  string
}

var NotFound = Outcome{}

// Resolver maps request paths to files below a document root.
type Resolver struct {
	filesystem Filesystem
	root       string
	logger     *slog.Logger
}

func NewResolver(filesystem Filesystem, root string, logger *slog.Logger) (*Resolver, error) {
	if root == "" {
		return nil, ErrInvalidPath
	}
	if logger == nil {
		logger = slog.Default()
	}

	absRoot, err := filesystem.GetAbsolutePath(root)
	if err != nil {
		return nil, err
	}
	absRoot = filepath.Clean(absRoot)

	isDir, err := filesystem.IsDirectory(absRoot)
	if err != nil {
		return nil, err
	}
	if !isDir {
		return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, absRoot)
	}

	return &Resolver{
		filesystem: filesystem,
		root:       absRoot,
		logger:     logger,
	}, nil
}

// Root returns the absolute, cleaned document root.
func (resolver *Resolver) Root() string {
	return resolver.root
}

// Resolve returns the file a request path refers to, or NotFound when the
// path leaves the root, does not exist or is not a regular file.
func (resolver *Resolver) Resolve(requestPath string) Outcome {
	path, err := resolver.Locate(requestPath)
	if err != nil {
		resolver.logger.Debug("request path rejected", "path", requestPath, "error", err)
		return NotFound
	}

	isFile, err := resolver.filesystem.IsFile(path)
	if err != nil {
		resolver.logger.Debug("stat failed", "path", path, "error", err)
		return NotFound
	}
	if !isFile {
		return NotFound
	}

	return Outcome{Found: true, Path: path}
}

// Locate maps a request path onto the root lexically, without touching the
// disk. "/" means "/index.html"; query and fragment are ignored.
func (resolver *Resolver) Locate(requestPath string) (string, error) {
	if i := strings.IndexAny(requestPath, "?#"); i >= 0 {
		requestPath = requestPath[:i]
	}
	if requestPath == "/" {
		requestPath = indexFile
	}

	relative := filepath.FromSlash(strings.TrimLeft(requestPath, "/"))
	path := filepath.Join(resolver.root, relative)

	if !within(resolver.root, path) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, requestPath)
	}

	return path, nil
}

// within reports whether path is root or below it. The separator is part of
// the prefix so that "/srv/www-private" is not inside "/srv/www".
func within(root, path string) bool {
	if path == root {
		return true
	}

	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}
