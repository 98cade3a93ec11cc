// Package storage manages the download directory: sanitized unique names
// for uploaded artifacts, `_revisi` revision naming, upload validation, and
// idempotent disposal.
package storage

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"dochelper/internal/docx"
	"dochelper/internal/errinfo"
	"dochelper/internal/logging"
)

const fallbackName = "document.docx"

type Manager struct {
	dir     string
	maxSize int64
	logger  *slog.Logger
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func New(dir string, maxSize int64, opts ...Option) (*Manager, error) {
	m := &Manager{dir: dir, maxSize: maxSize, logger: logging.Nop()}
	for _, opt := range opts {
		opt(m)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) Dir() string { return m.dir }

// SanitizeName strips path separators and control characters, keeps ASCII
// alphanumerics plus `._- ` and non-ASCII letters, and forces a .docx
// name. Anything left empty or hidden falls back to a generic name.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r == '/' || r == '\\' || r == 0 {
			continue
		}
		if r < utf8.RuneSelf {
			if isASCIIAlnum(byte(r)) || strings.ContainsRune("._- ", r) {
				b.WriteRune(r)
			}
			continue
		}
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	safe := strings.TrimSpace(b.String())
	if safe == "" || strings.HasPrefix(safe, ".") {
		return fallbackName
	}
	if !strings.HasSuffix(strings.ToLower(safe), ".docx") {
		safe += ".docx"
	}
	return safe
}

func isASCIIAlnum(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// UniquePath returns a fresh collision-free path for an upload, keeping a
// sanitized version of the original name for readability.
func (m *Manager) UniquePath(originalName string) string {
	return filepath.Join(m.dir, uuid.NewString()+"_"+SanitizeName(originalName))
}

// RevisedPath names the mutated sibling of an artifact:
// {base}_revisi{ext} in the same directory.
func RevisedPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_revisi" + ext
}

// CleanOutputName derives the user-facing download name from the original
// upload name.
func CleanOutputName(originalName string) string {
	ext := filepath.Ext(originalName)
	return strings.TrimSuffix(originalName, ext) + "_revisi" + ext
}

// ValidateUpload checks extension, size, magic bytes, and structural
// openability, in that order. The first failure wins.
func (m *Manager) ValidateUpload(name string, data []byte) error {
	if strings.ToLower(filepath.Ext(name)) != ".docx" {
		return errinfo.ValidationFailed(errinfo.PhaseUpload,
			"Only .docx documents are supported.", "extension not supported: "+filepath.Ext(name))
	}
	if int64(len(data)) > m.maxSize {
		return errinfo.FileTooLarge(errinfo.PhaseUpload, int(m.maxSize/(1<<20)))
	}
	kind, _ := filetype.Match(data)
	if kind.Extension != "docx" && kind.Extension != "zip" {
		return errinfo.ValidationFailed(errinfo.PhaseUpload,
			"Invalid or corrupted DOCX file.", "magic bytes identify "+kind.Extension)
	}
	if err := docx.Validate(data); err != nil {
		return errinfo.ValidationFailed(errinfo.PhaseUpload,
			"Invalid or corrupted DOCX file.", err.Error())
	}
	return nil
}

// SaveUpload persists an upload under a unique name and returns its path.
func (m *Manager) SaveUpload(name string, data []byte) (string, error) {
	path := m.UniquePath(name)
	if err := m.atomicWrite(path, data); err != nil {
		return "", errinfo.FileWriteFailed(errinfo.PhaseUpload, err.Error())
	}
	m.logger.Debug("storage.saved", "path", path, "bytes", len(data))
	return path, nil
}

// Remove disposes an artifact; a missing file is not an error.
func (m *Manager) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (m *Manager) atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(m.dir, ".upload-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
