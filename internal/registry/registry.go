// Package registry owns the set of compiled protocols. It discovers schema
// sources under the configured locations, compiles them through the codec
// engine, and keeps the compiled state synced to disk with a lazy,
// throttled change detector — a bad edit to one protocol never removes the
// last working version of that protocol, and never touches any other.
package registry

import (
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/asnlens/asnlens/api"
	"github.com/asnlens/asnlens/internal/codec"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/rs/zerolog"
)

// Config is the registry's own view of configuration. Reload re-reads it
// through the provider passed to New.
type Config struct {
	// Locations are schema source paths, possibly relative; each is
	// resolved against the candidate base directories.
	Locations []string
	// Extensions are the recognized schema file suffixes.
	Extensions []string
	// Rule is the encoding rule protocols are compiled for.
	Rule codec.EncodingRule
	// PollInterval throttles the change detector; a read recomputes the
	// file snapshot at most once per interval.
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if len(c.Extensions) == 0 {
		c.Extensions = []string{".asn", ".asn1"}
	}
	if c.Rule == "" {
		c.Rule = codec.RulePER
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	return c
}

// Protocol is one compiled protocol and its metadata. Instances are
// replaced atomically on successful recompilation and retained stale when
// their own recompilation fails.
type Protocol struct {
	Name        string
	Files       []string // schema files, relative to the protocol root
	Types       []string // declared type names, sorted
	Spec        codec.Specification
	Bundled     bool
	Examples    map[string]any // example values keyed by file stem
	Diagnostics []string
}

type snapshotEntry struct {
	modTime int64
	size    int64
}

// Registry keeps protocols compiled and current. Methods are safe for
// concurrent use; compilation happens outside the state lock, so readers
// are never blocked behind a slow recompile.
type Registry struct {
	fs       billy.Filesystem
	engine   codec.Engine
	log      zerolog.Logger
	configFn func() Config
	cwd      string
	exeDir   string

	// reloadMu serializes scans and compiles; mu guards the state below.
	reloadMu sync.Mutex
	mu       sync.RWMutex

	cfg         Config
	protocols   map[string]*Protocol
	compileErrs map[string]string
	snapshot    map[string]snapshotEntry
	lastCheck   time.Time
}

// Option adjusts a Registry at construction time.
type Option func(*Registry)

// WithFilesystem substitutes the filesystem the registry scans, e.g. a
// memfs in tests.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(r *Registry) { r.fs = fs }
}

// WithBaseDirs overrides the candidate base directories relative locations
// resolve against (working directory and executable directory).
func WithBaseDirs(cwd, exeDir string) Option {
	return func(r *Registry) {
		r.cwd = cwd
		r.exeDir = exeDir
	}
}

// New builds a registry over engine. configFn is consulted at construction
// and again on every Reload. The registry starts empty; call LoadAll.
func New(engine codec.Engine, configFn func() Config, log zerolog.Logger, opts ...Option) *Registry {
	r := &Registry{
		fs:          osfs.New("/"),
		engine:      engine,
		log:         log.With().Str("component", "registry").Logger(),
		configFn:    configFn,
		cfg:         configFn().withDefaults(),
		protocols:   make(map[string]*Protocol),
		compileErrs: make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cwd == "" || r.exeDir == "" {
		cwd, exeDir := hostBaseDirs()
		if r.cwd == "" {
			r.cwd = cwd
		}
		if r.exeDir == "" {
			r.exeDir = exeDir
		}
	}
	return r
}

// LoadAll discovers and compiles every protocol under the configured
// locations, returning compile failures keyed by protocol name. Failed
// protocols keep their previous compiled version, if any.
func (r *Registry) LoadAll() map[string]string {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()
	return r.loadLocked()
}

// Reload re-reads configuration and forces a full recompilation.
func (r *Registry) Reload() map[string]string {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	cfg := r.configFn().withDefaults()
	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()

	return r.loadLocked()
}

// GetCompiled returns the compiled specification for name, or nil. It runs
// the staleness check first when the polling interval elapsed.
func (r *Registry) GetCompiled(name string) codec.Specification {
	r.maybeRefresh()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.protocols[name]; ok {
		return p.Spec
	}
	return nil
}

// GetProtocol returns the full protocol record for name, or nil. The record
// is a copy; mutating it does not affect the registry.
func (r *Registry) GetProtocol(name string) *Protocol {
	r.maybeRefresh()
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.protocols[name]
	if !ok {
		return nil
	}
	out := *p
	out.Files = append([]string(nil), p.Files...)
	out.Types = append([]string(nil), p.Types...)
	out.Diagnostics = append([]string(nil), p.Diagnostics...)
	if p.Examples != nil {
		out.Examples = make(map[string]any, len(p.Examples))
		maps.Copy(out.Examples, p.Examples)
	}
	return &out
}

// ListMetadata describes every currently compiled protocol, sorted by name.
func (r *Registry) ListMetadata() []api.ProtocolMetadata {
	r.maybeRefresh()
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]api.ProtocolMetadata, 0, len(r.protocols))
	for _, p := range r.protocols {
		out = append(out, api.ProtocolMetadata{
			Name:        p.Name,
			Files:       append([]string(nil), p.Files...),
			Types:       append([]string(nil), p.Types...),
			IsBundled:   p.Bundled,
			Diagnostics: append([]string(nil), p.Diagnostics...),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetExamples returns the example-value bank of a protocol, keyed by file
// stem. Nil when the protocol is unknown.
func (r *Registry) GetExamples(name string) map[string]any {
	r.maybeRefresh()
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.protocols[name]
	if !ok {
		return nil
	}
	out := make(map[string]any, len(p.Examples))
	maps.Copy(out, p.Examples)
	return out
}

// Errors returns the compile failures of the last load, keyed by protocol
// name.
func (r *Registry) Errors() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.compileErrs))
	maps.Copy(out, r.compileErrs)
	return out
}

// maybeRefresh recomputes the file snapshot when the polling interval has
// elapsed and reloads if anything changed. Throttled: concurrent readers
// after an expired interval trigger at most one rescan.
func (r *Registry) maybeRefresh() {
	r.mu.RLock()
	due := time.Since(r.lastCheck) >= r.cfg.PollInterval
	r.mu.RUnlock()
	if !due {
		return
	}

	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	r.mu.Lock()
	if time.Since(r.lastCheck) < r.cfg.PollInterval {
		r.mu.Unlock()
		return
	}
	r.lastCheck = time.Now()
	cfg := r.cfg
	previous := r.snapshot
	r.mu.Unlock()

	snap := r.computeSnapshot(r.resolveSourceLocations(cfg), cfg)
	if maps.Equal(snap, previous) {
		return
	}
	r.log.Debug().Msg("schema sources changed on disk, reloading")
	r.loadLocked()
}

// loadLocked performs the scan-compile-swap cycle. Caller holds reloadMu;
// the state lock is only taken for the final swap.
func (r *Registry) loadLocked() map[string]string {
	r.mu.RLock()
	cfg := r.cfg
	r.mu.RUnlock()

	locations := r.resolveSourceLocations(cfg)
	snap := r.computeSnapshot(locations, cfg)
	units := r.discoverUnits(locations, cfg)

	compiled := make(map[string]*Protocol, len(units))
	errs := make(map[string]string)
	for _, unit := range units {
		p, err := r.compileUnit(unit, cfg)
		if err != nil {
			r.log.Warn().Str("protocol", unit.name).Err(err).Msg("compile failed, keeping previous version")
			errs[unit.name] = err.Error()
			continue
		}
		r.log.Info().
			Str("protocol", unit.name).
			Int("types", len(p.Types)).
			Int("files", len(p.Files)).
			Msg("compiled protocol")
		compiled[unit.name] = p
	}

	r.mu.Lock()
	for name := range errs {
		if previous, ok := r.protocols[name]; ok {
			compiled[name] = previous
		}
	}
	r.protocols = compiled
	r.compileErrs = errs
	r.snapshot = snap
	r.lastCheck = time.Now()
	r.mu.Unlock()

	return errs
}

func (r *Registry) compileUnit(unit sourceUnit, cfg Config) (*Protocol, error) {
	spec, diags, err := r.engine.Compile(unit.files, cfg.Rule)
	if err != nil {
		return nil, err
	}

	types := make([]string, 0, len(spec.Types()))
	for name := range spec.Types() {
		types = append(types, name)
	}
	sort.Strings(types)

	files := make([]string, 0, len(unit.files))
	for _, f := range unit.files {
		files = append(files, relativeTo(unit.root, f))
	}

	diagStrings := make([]string, 0, len(diags))
	for _, d := range diags {
		diagStrings = append(diagStrings, d.String())
	}

	return &Protocol{
		Name:        unit.name,
		Files:       files,
		Types:       types,
		Spec:        spec,
		Bundled:     unit.bundled,
		Examples:    r.loadExamples(unit.root),
		Diagnostics: diagStrings,
	}, nil
}

func relativeTo(root, path string) string {
	root = strings.TrimSuffix(root, "/")
	if strings.HasPrefix(path, root+"/") {
		return strings.TrimPrefix(path, root+"/")
	}
	return path
}

func (r *Registry) String() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fmt.Sprintf("registry(%d protocols, %d errors)", len(r.protocols), len(r.compileErrs))
}
