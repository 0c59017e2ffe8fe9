package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// Error constants for better error handling
var (
	ErrFileNotFound      = fmt.Errorf("filesystem: file not found")
	ErrDirectoryNotFound = fmt.Errorf("filesystem: directory not found")
	ErrInvalidPath       = fmt.Errorf("filesystem: invalid path")
	ErrOutsideRoot       = fmt.Errorf("filesystem: path escapes document root")
)

const DefaultContentType = "application/octet-stream"

// fallbackContentTypes covers extensions missing from Go's builtin table,
// used when the host has no mime.types file.
var fallbackContentTypes = map[string]string{
	".txt": "text/plain",
	".csv": "text/csv",
	".md":  "text/markdown",
	".ico": "image/x-icon",
	".gz":  "application/gzip",
	".br":  "application/x-brotli",
}

// Filesystem is the read side of the disk the server needs: existence
// checks, opening files for streaming and content type inference.
type Filesystem interface {
	Open(path string) (fs.File, error)

	IsFile(path string) (bool, error)
	IsDirectory(path string) (bool, error)

	GetAbsolutePath(path string) (string, error)
	ContentType(path string) string
}

type localFileSystem struct {
}

func NewLocalFileSystem() Filesystem {
	return &localFileSystem{}
}

// Open implements Filesystem. The returned file is an *os.File so it can be
// passed to sendfile by the network stack.
func (filesystem *localFileSystem) Open(path string) (fs.File, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, err
	}

	return file, nil
}

// IsFile implements Filesystem.
func (filesystem *localFileSystem) IsFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// IsDirectory implements Filesystem.
func (filesystem *localFileSystem) IsDirectory(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

// GetAbsolutePath implements Filesystem.
func (filesystem *localFileSystem) GetAbsolutePath(path string) (string, error) {
	return filepath.Abs(path)
}

// ContentType implements Filesystem. Parameters such as charset are dropped,
// so ".html" yields "text/html".
func (filesystem *localFileSystem) ContentType(path string) string {
	return ContentTypeByExtension(GetFileExtension(path))
}

// ContentTypeByExtension returns the bare media type registered for ext, or
// DefaultContentType when none is known.
func ContentTypeByExtension(ext string) string {
	if ext == "" {
		return DefaultContentType
	}

	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		if fallback, ok := fallbackContentTypes[strings.ToLower(ext)]; ok {
			return fallback
		}
		return DefaultContentType
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return DefaultContentType
	}
	return mediaType
}

// GetFileExtension returns the file extension
func GetFileExtension(path string) string {
	return filepath.Ext(path)
}
