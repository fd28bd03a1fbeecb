package registry

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ohler55/ojg/oj"
)

// resolvedLocation is a schema source location that exists on the
// filesystem.
type resolvedLocation struct {
	path    string
	bundled bool
}

// sourceUnit is one protocol's worth of schema files before compilation.
type sourceUnit struct {
	name    string
	root    string // directory holding the files and their examples
	files   []string
	bundled bool
}

func hostBaseDirs() (cwd, exeDir string) {
	cwd, _ = os.Getwd()
	if exe, err := os.Executable(); err == nil {
		exeDir = filepath.Dir(exe)
	}
	return cwd, exeDir
}

// resolveSourceLocations maps each configured location to an existing path,
// trying the candidate base directories in order for relative ones. Missing
// locations are logged and skipped; configuration problems are never fatal.
func (r *Registry) resolveSourceLocations(cfg Config) []resolvedLocation {
	var out []resolvedLocation
	for _, loc := range cfg.Locations {
		if loc == "" {
			continue
		}
		if filepath.IsAbs(loc) {
			if r.exists(loc) {
				out = append(out, resolvedLocation{path: loc, bundled: r.isBundled(loc)})
			} else {
				r.log.Warn().Str("location", loc).Msg("schema location not found, skipping")
			}
			continue
		}

		candidates := []string{}
		if r.cwd != "" {
			candidates = append(candidates, filepath.Join(r.cwd, loc))
		}
		if r.exeDir != "" {
			candidates = append(candidates, filepath.Join(r.exeDir, loc))
		}
		if r.cwd != "" {
			// Development checkouts often run from a subdirectory.
			candidates = append(candidates, filepath.Join(filepath.Dir(r.cwd), loc))
		}

		found := false
		for _, candidate := range candidates {
			if r.exists(candidate) {
				out = append(out, resolvedLocation{path: candidate, bundled: r.isBundled(candidate)})
				found = true
				break
			}
		}
		if !found {
			r.log.Warn().Str("location", loc).Msg("schema location not found, skipping")
		}
	}
	return out
}

func (r *Registry) exists(path string) bool {
	_, err := r.fs.Stat(path)
	return err == nil
}

func (r *Registry) isBundled(path string) bool {
	return r.exeDir != "" && strings.HasPrefix(path, strings.TrimSuffix(r.exeDir, "/")+"/")
}

// discoverUnits turns resolved locations into protocol units: a single
// schema file is a protocol named for its stem; a directory with top-level
// schema files is a protocol named for the directory; each first-level
// subdirectory holding schema files is a protocol of its own. When two
// locations yield the same protocol name, the earlier location wins.
func (r *Registry) discoverUnits(locations []resolvedLocation, cfg Config) []sourceUnit {
	var units []sourceUnit
	seen := make(map[string]string)
	add := func(u sourceUnit) {
		if prev, dup := seen[u.name]; dup {
			r.log.Warn().
				Str("protocol", u.name).
				Str("kept", prev).
				Str("ignored", u.root).
				Msg("duplicate protocol name, keeping the earlier location")
			return
		}
		seen[u.name] = u.root
		units = append(units, u)
	}
	for _, loc := range locations {
		info, err := r.fs.Stat(loc.path)
		if err != nil {
			continue
		}

		if !info.IsDir() {
			if !hasExtension(loc.path, cfg.Extensions) {
				continue
			}
			add(sourceUnit{
				name:    stem(loc.path),
				root:    filepath.Dir(loc.path),
				files:   []string{loc.path},
				bundled: loc.bundled,
			})
			continue
		}

		entries, err := r.fs.ReadDir(loc.path)
		if err != nil {
			r.log.Warn().Str("location", loc.path).Err(err).Msg("cannot scan schema location")
			continue
		}

		var topFiles []string
		for _, entry := range entries {
			child := filepath.Join(loc.path, entry.Name())
			if entry.IsDir() {
				if sub := r.schemaFiles(child, cfg); len(sub) > 0 {
					add(sourceUnit{
						name:    entry.Name(),
						root:    child,
						files:   sub,
						bundled: loc.bundled,
					})
				}
				continue
			}
			if hasExtension(entry.Name(), cfg.Extensions) {
				topFiles = append(topFiles, child)
			}
		}
		if len(topFiles) > 0 {
			add(sourceUnit{
				name:    filepath.Base(loc.path),
				root:    loc.path,
				files:   topFiles,
				bundled: loc.bundled,
			})
		}
	}
	return units
}

func (r *Registry) schemaFiles(dir string, cfg Config) []string {
	entries, err := r.fs.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if hasExtension(entry.Name(), cfg.Extensions) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files
}

// computeSnapshot records mtime and size of every recognized schema and
// example file under the locations, at the same two levels discovery looks
// at. Comparing snapshots is how the change detector decides to reload.
func (r *Registry) computeSnapshot(locations []resolvedLocation, cfg Config) map[string]snapshotEntry {
	snap := make(map[string]snapshotEntry)
	record := func(path string) {
		info, err := r.fs.Stat(path)
		if err != nil {
			return
		}
		snap[path] = snapshotEntry{modTime: info.ModTime().UnixNano(), size: info.Size()}
	}

	for _, loc := range locations {
		info, err := r.fs.Stat(loc.path)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			record(loc.path)
			continue
		}
		entries, err := r.fs.ReadDir(loc.path)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			child := filepath.Join(loc.path, entry.Name())
			if entry.IsDir() {
				subEntries, err := r.fs.ReadDir(child)
				if err != nil {
					continue
				}
				for _, sub := range subEntries {
					if !sub.IsDir() && recognized(sub.Name(), cfg.Extensions) {
						record(filepath.Join(child, sub.Name()))
					}
				}
				continue
			}
			if recognized(entry.Name(), cfg.Extensions) {
				record(child)
			}
		}
	}
	return snap
}

// loadExamples reads co-located example files: one JSON file per example,
// keyed by file stem. Broken examples are skipped, never fatal.
func (r *Registry) loadExamples(root string) map[string]any {
	entries, err := r.fs.ReadDir(root)
	if err != nil {
		return nil
	}
	var examples map[string]any
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		path := filepath.Join(root, entry.Name())
		f, err := r.fs.Open(path)
		if err != nil {
			continue
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			continue
		}
		value, err := oj.Parse(data)
		if err != nil {
			r.log.Warn().Str("example", path).Err(err).Msg("skipping unparseable example")
			continue
		}
		if examples == nil {
			examples = make(map[string]any)
		}
		examples[stem(path)] = value
	}
	return examples
}

func hasExtension(path string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range extensions {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// recognized covers everything the change detector watches: schema sources
// and example files.
func recognized(path string, extensions []string) bool {
	return hasExtension(path, extensions) || strings.EqualFold(filepath.Ext(path), ".json")
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
