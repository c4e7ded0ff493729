package server

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// FixturePattern selects the files served by the preview server. A diagram
// is <entry>.svg, optionally themed as <entry>.<theme>.svg; its payload is
// <entry>.json.
const FixturePattern = "**/*.{svg,json}"

var ErrUnknownEntry = errors.New("unknown entry")

var fixtureThemes = map[string]bool{"auto": true, "light": true, "dark": true}

type fixture struct {
	svgs    map[string]string // theme ("" for the default) -> path
	payload string
}

// Fixtures indexes diagram and payload files under a directory. Payloads
// published through the server override the file until the next Rescan.
type Fixtures struct {
	fsys fs.FS

	mu        sync.RWMutex
	entries   map[string]*fixture
	overrides map[string][]byte
}

// LoadFixtures scans dir for fixtures.
func LoadFixtures(dir string) (*Fixtures, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("opening fixtures dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("fixtures path %s is not a directory", dir)
	}
	f := &Fixtures{fsys: os.DirFS(dir)}
	if err := f.Rescan(); err != nil {
		return nil, err
	}
	return f, nil
}

// Rescan rebuilds the index from disk and drops published overrides.
func (f *Fixtures) Rescan() error {
	matches, err := doublestar.Glob(f.fsys, FixturePattern)
	if err != nil {
		return fmt.Errorf("scanning fixtures: %w", err)
	}

	entries := make(map[string]*fixture)
	for _, p := range matches {
		ext := path.Ext(p)
		stem := strings.TrimSuffix(path.Base(p), ext)
		entry, theme := stem, ""
		if ext == ".svg" {
			if i := strings.LastIndex(stem, "."); i > 0 && fixtureThemes[stem[i+1:]] {
				entry, theme = stem[:i], stem[i+1:]
			}
		}

		fx, ok := entries[entry]
		if !ok {
			fx = &fixture{svgs: make(map[string]string)}
			entries[entry] = fx
		}
		switch ext {
		case ".svg":
			if prev, dup := fx.svgs[theme]; dup {
				log.Printf("server: fixture %s shadows %s", p, prev)
			}
			fx.svgs[theme] = p
		case ".json":
			if fx.payload != "" {
				log.Printf("server: fixture %s shadows %s", p, fx.payload)
			}
			fx.payload = p
		}
	}

	f.mu.Lock()
	f.entries = entries
	f.overrides = make(map[string][]byte)
	f.mu.Unlock()
	return nil
}

// Entries returns the known entry ids, sorted.
func (f *Fixtures) Entries() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.entries))
	for id := range f.entries {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Has reports whether entry has any fixture.
func (f *Fixtures) Has(entry string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.entries[entry]
	return ok
}

// SVG returns the diagram for entry in theme, falling back to the unthemed
// file.
func (f *Fixtures) SVG(entry, theme string) ([]byte, error) {
	f.mu.RLock()
	fx, ok := f.entries[entry]
	var p string
	if ok {
		p = fx.svgs[theme]
		if p == "" {
			p = fx.svgs[""]
		}
	}
	f.mu.RUnlock()
	if p == "" {
		return nil, fmt.Errorf("diagram for %q: %w", entry, ErrUnknownEntry)
	}
	return fs.ReadFile(f.fsys, p)
}

// Payload returns the published payload for entry, or its file.
func (f *Fixtures) Payload(entry string) ([]byte, error) {
	f.mu.RLock()
	raw, overridden := f.overrides[entry]
	var p string
	if fx, ok := f.entries[entry]; ok {
		p = fx.payload
	}
	f.mu.RUnlock()
	if overridden {
		return raw, nil
	}
	if p == "" {
		return nil, fmt.Errorf("payload for %q: %w", entry, ErrUnknownEntry)
	}
	return fs.ReadFile(f.fsys, p)
}

// SetPayload records a published payload for a known entry.
func (f *Fixtures) SetPayload(entry string, raw []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[entry]; !ok {
		return fmt.Errorf("publishing %q: %w", entry, ErrUnknownEntry)
	}
	f.overrides[entry] = raw
	return nil
}
