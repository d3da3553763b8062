package vitessr

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"
)

// ComponentMarker names an element whose attribute holds a client entry path.
type ComponentMarker struct {
	Name      string `mapstructure:"name" json:"name" yaml:"name"`
	Attribute string `mapstructure:"attribute" json:"attribute" yaml:"attribute"`
}

// DefaultComponentMarkers detects <Script src> and <Link href>.
var DefaultComponentMarkers = []ComponentMarker{
	{Name: "Script", Attribute: "src"},
	{Name: "Link", Attribute: "href"},
}

// DefaultEntryPattern selects the sources scanned for markers.
const DefaultEntryPattern = "src/**/*.{ts,tsx}"

// ScanMode chooses how marker elements are found.
type ScanMode string

const (
	// ScanAST parses each file and only accepts string literal attributes.
	ScanAST ScanMode = "ast"
	// ScanRegex matches markup textually. Commented-out elements are detected too.
	ScanRegex ScanMode = "regex"
)

// EntryDetector finds client entry points referenced by marker elements in source files.
type EntryDetector struct {
	Root string
	// FS overrides the filesystem; it defaults to os.DirFS(Root).
	FS          fs.FS
	Patterns    []string
	Components  []ComponentMarker
	Mode        ScanMode
	Concurrency int
	Logger      *Logger
}

// Detect scans Root and returns every entry path once, in the order first seen.
// Unreadable directories and files are logged and skipped; only cancellation is returned.
func (d *EntryDetector) Detect(ctx context.Context) ([]string, error) {
	log := loggerOrNop(d.Logger)
	fsys := d.filesystem()
	patterns := d.patterns(log)
	markers := d.Components
	if len(markers) == 0 {
		markers = DefaultComponentMarkers
	}

	files := d.walk(fsys, ".", patterns, log)
	log.Debug("scanning " + strings.Join(files, ", "))

	results := make([][]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency())
	for i, name := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = d.scanFile(fsys, name, markers, log)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var entries []string
	for _, found := range results {
		for _, e := range found {
			if seen[e] {
				continue
			}
			seen[e] = true
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// Apply detects entries and merges them into the client environment of cfg.
func (d *EntryDetector) Apply(ctx context.Context, cfg *BuildConfig) ([]string, error) {
	entries, err := d.Detect(ctx)
	if err != nil {
		return nil, err
	}
	ApplyEntries(cfg, entries)
	if len(entries) > 0 {
		loggerOrNop(d.Logger).Info("detected " + strings.Join(entries, ", "))
	}
	return entries, nil
}

func (d *EntryDetector) filesystem() fs.FS {
	if d.FS != nil {
		return d.FS
	}
	root := d.Root
	if root == "" {
		root = "."
	}
	return os.DirFS(root)
}

func (d *EntryDetector) patterns(log *Logger) []string {
	raw := d.Patterns
	if len(raw) == 0 {
		raw = []string{DefaultEntryPattern}
	}
	var out []string
	for _, p := range NormalizeGlobPatterns(raw, d.Root) {
		if !doublestar.ValidatePattern(p) {
			log.Warn("ignoring invalid pattern", p, doublestar.ErrBadPattern)
			continue
		}
		out = append(out, p)
	}
	return out
}

func (d *EntryDetector) concurrency() int {
	if d.Concurrency > 0 {
		return d.Concurrency
	}
	return runtime.GOMAXPROCS(0)
}

// walk lists matching files below dir, skipping hidden directories and node_modules.
func (d *EntryDetector) walk(fsys fs.FS, dir string, patterns []string, log *Logger) []string {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		log.Warn("failed to scan directory", dir, err)
		return nil
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		rel := path.Join(dir, name)
		if entry.IsDir() {
			if strings.HasPrefix(name, ".") || name == "node_modules" {
				continue
			}
			files = append(files, d.walk(fsys, rel, patterns, log)...)
			continue
		}
		if matchAny(patterns, rel) {
			files = append(files, rel)
		}
	}
	return files
}

func (d *EntryDetector) scanFile(fsys fs.FS, name string, markers []ComponentMarker, log *Logger) []string {
	source, err := fs.ReadFile(fsys, name)
	if err != nil {
		log.Warn("failed to process file", name, err)
		return nil
	}

	if d.Mode == ScanRegex {
		return extractEntriesRegex(source, markers)
	}

	entries, err := extractEntries(source, name, markers)
	if errors.Is(err, ErrParse) {
		log.Warn("failed to parse file for auto-entry detection", name, err)
		return nil
	}
	if err != nil {
		log.Warn("failed to process file", name, err)
		return nil
	}
	return entries
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}
