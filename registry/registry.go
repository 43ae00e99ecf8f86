// Package registry resolves morph identifiers against the on-disk morph
// registry: <root>/<package>/<version>/<name>.wasm, with no index file.
// Version selection falls back to the greatest semver-valid directory
// when the caller does not pin a version.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/hayride-dev/hayride/herr"
)

// Identifier is a parsed morph identifier: <package>:<name>[@<semver>].
type Identifier struct {
	Package string
	Name    string
	Version string // empty means "unpinned, resolve to greatest"
}

var identPattern = regexp.MustCompile(`^([^:@]+):([^:@]+)(?:@(.+))?$`)

// ParseIdentifier parses a morph identifier of the form
// "<package>:<name>[@<semver>]".
func ParseIdentifier(s string) (Identifier, error) {
	m := identPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Identifier{}, herr.Core(herr.KindInvalidArgument, "", fmt.Sprintf("malformed morph identifier %q", s))
	}
	return Identifier{Package: m[1], Name: m[2], Version: m[3]}, nil
}

// String renders the identifier back to its canonical text form.
func (id Identifier) String() string {
	if id.Version == "" {
		return id.Package + ":" + id.Name
	}
	return id.Package + ":" + id.Name + "@" + id.Version
}

// Registry resolves morph identifiers to filesystem paths under a single
// root directory. Resolution is read-only: it never creates, modifies, or
// deletes anything under root.
type Registry struct {
	root string
}

// New constructs a Registry rooted at root.
func New(root string) *Registry {
	return &Registry{root: root}
}

// Root returns the registry's root directory.
func (r *Registry) Root() string { return r.root }

// Resolve finds the on-disk path for id. If id.Version is empty, the
// greatest semver-valid version directory under <root>/<package> is chosen;
// ties are broken by semver precedence. Resolution fails with a
// herr.KindFileNotFound error if no matching file exists.
func (r *Registry) Resolve(id Identifier) (string, error) {
	pkgDir := filepath.Join(r.root, id.Package)

	version := id.Version
	if version == "" {
		v, err := r.greatestVersion(pkgDir)
		if err != nil {
			return "", err
		}
		version = v
	}

	path := filepath.Join(pkgDir, version, id.Name+".wasm")
	if _, err := os.Stat(path); err != nil {
		return "", herr.New(herr.CapCore, herr.KindFileNotFound, "", fmt.Sprintf("no morph at %s", path))
	}
	return path, nil
}

// greatestVersion returns the version directory name with the greatest
// semver precedence under pkgDir.
func (r *Registry) greatestVersion(pkgDir string) (string, error) {
	entries, err := os.ReadDir(pkgDir)
	if err != nil {
		return "", herr.NewWithCause(herr.CapCore, herr.KindFileNotFound, "", "no such package in registry", err)
	}

	var versions []*semver.Version
	byRaw := map[*semver.Version]string{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		v, err := semver.NewVersion(e.Name())
		if err != nil {
			continue
		}
		versions = append(versions, v)
		byRaw[v] = e.Name()
	}
	if len(versions) == 0 {
		return "", herr.New(herr.CapCore, herr.KindFileNotFound, "", "no semver-valid version directories in registry")
	}

	sort.Sort(semver.Collection(versions))
	greatest := versions[len(versions)-1]
	return byRaw[greatest], nil
}
