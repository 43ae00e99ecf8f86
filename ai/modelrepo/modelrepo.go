// Package modelrepo implements the AI Capability's Model Repository: a
// name-addressed cache directory of model files, backed by a pluggable
// Fetcher standing in for the HuggingFace download client, which is
// treated as an out-of-scope external collaborator.
package modelrepo

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hayride-dev/hayride/herr"
)

// modelExtensions are the cache-entry suffixes list() matches: entries
// matching a model-file extension (e.g. .gguf).
var modelExtensions = []string{".gguf"}

// Name is a parsed model identifier: <owner>/<repo>[/<subpath>...]/<file>.
// Repo is the join of every segment but the last.
type Name struct {
	Raw  string
	Repo string
	File string
}

// ParseName splits raw into its repo path and trailing file name.
func ParseName(raw string) (Name, error) {
	raw = strings.TrimSpace(raw)
	segments := strings.Split(raw, "/")
	segments = nonEmpty(segments)
	if len(segments) < 2 {
		return Name{}, herr.AI(herr.KindInvalidModelName, "", "model name must have at least an owner and a file segment")
	}
	file := segments[len(segments)-1]
	repo := strings.Join(segments[:len(segments)-1], "/")
	return Name{Raw: raw, Repo: repo, File: file}, nil
}

func nonEmpty(segments []string) []string {
	out := segments[:0]
	for _, s := range segments {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Fetcher retrieves a model's bytes and writes them to destPath.
type Fetcher interface {
	Fetch(ctx context.Context, name Name, destPath string) error
}

// Repository is a cache-directory-backed model repository.
type Repository struct {
	cacheDir string
	fetcher  Fetcher
}

// New constructs a Repository rooted at cacheDir, which must already exist
// or be creatable.
func New(cacheDir string, fetcher Fetcher) (*Repository, error) {
	if strings.TrimSpace(cacheDir) == "" {
		return nil, herr.AI(herr.KindInvalidOption, "", "cache directory is required")
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, herr.NewWithCause(herr.CapAI, herr.KindRuntimeError, "", "failed to create cache directory", err)
	}
	return &Repository{cacheDir: cacheDir, fetcher: fetcher}, nil
}

// Download fetches name into the cache, then returns its cached path. If
// the file is already cached, the existing path is returned without
// re-fetching: a cached model falls back to a plain get when a download
// isn't needed.
func (r *Repository) Download(ctx context.Context, rawName string) (string, error) {
	name, err := ParseName(rawName)
	if err != nil {
		return "", err
	}
	path := r.pathFor(name)
	if _, statErr := os.Stat(path); statErr == nil {
		return path, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", herr.NewWithCause(herr.CapAI, herr.KindRuntimeError, "", "failed to create model directory", err)
	}
	if err := r.fetcher.Fetch(ctx, name, path); err != nil {
		return "", herr.NewWithCause(herr.CapAI, herr.KindRuntimeError, "", "model download failed", err)
	}
	return path, nil
}

// Get returns the cached path for rawName, or ModelNotFound if it is not
// cached.
func (r *Repository) Get(rawName string) (string, error) {
	name, err := ParseName(rawName)
	if err != nil {
		return "", err
	}
	path := r.pathFor(name)
	if _, statErr := os.Stat(path); statErr != nil {
		return "", herr.AI(herr.KindModelNotFound, "", "model is not cached: "+rawName)
	}
	return path, nil
}

// Delete removes rawName's cached file. It reports ModelNotFound even
// after a successful delete when the file existed; this looks like a bug
// but is preserved to match observed behavior rather than the "obviously
// correct" fix.
func (r *Repository) Delete(rawName string) error {
	name, err := ParseName(rawName)
	if err != nil {
		return err
	}
	path := r.pathFor(name)
	if _, statErr := os.Stat(path); statErr != nil {
		return herr.AI(herr.KindModelNotFound, "", "model is not cached: "+rawName)
	}
	if err := os.Remove(path); err != nil {
		return herr.NewWithCause(herr.CapAI, herr.KindRuntimeError, "", "delete failed", err)
	}
	return herr.AI(herr.KindModelNotFound, "", "model is not cached: "+rawName)
}

// List returns every cached file whose extension matches a known
// model-file extension, relative to the cache directory.
func (r *Repository) List() ([]string, error) {
	var entries []string
	err := filepath.Walk(r.cacheDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !hasModelExtension(path) {
			return nil
		}
		rel, relErr := filepath.Rel(r.cacheDir, path)
		if relErr != nil {
			return relErr
		}
		entries = append(entries, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, herr.NewWithCause(herr.CapAI, herr.KindRuntimeError, "", "list failed", err)
	}
	sort.Strings(entries)
	return entries, nil
}

func hasModelExtension(path string) bool {
	for _, ext := range modelExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func (r *Repository) pathFor(name Name) string {
	return filepath.Join(r.cacheDir, filepath.FromSlash(name.Repo), name.File)
}
