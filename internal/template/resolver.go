package template

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/nerrad567/mbus-bridge/internal/infrastructure/config"
	"github.com/nerrad567/mbus-bridge/internal/mbus"
)

// indexFile is the index document name in both the user directory and the
// bundled set.
const indexFile = "index.json"

// Logger is the logging interface used by the resolver.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Resolver loads and matches templates with user-over-bundled precedence.
//
// Thread Safety:
//   - Resolve and Load are safe for concurrent use; loaded templates are
//     cached and immutable.
type Resolver struct {
	userDir string
	bundled fs.FS
	logger  Logger

	userIndex    *Index
	bundledIndex *Index

	mu    sync.Mutex
	cache map[string]*Template
	// failed records user templates that failed to load, so each is
	// logged once and later lookups fall back silently.
	failed map[string]bool
}

// NewResolver builds a resolver over the configured user template directory
// and the bundled template set.
//
// A missing user directory or user index is normal. A malformed user index
// is logged and treated as absent. The bundled index is compiled in and
// must parse.
func NewResolver(cfg config.TemplatesConfig) (*Resolver, error) {
	r := &Resolver{
		userDir: cfg.Dir,
		bundled: BundledFS(),
		logger:  noopLogger{},
		cache:   make(map[string]*Template),
		failed:  make(map[string]bool),
	}

	data, err := fs.ReadFile(r.bundled, indexFile)
	if err != nil {
		return nil, fmt.Errorf("reading bundled template index: %w", err)
	}
	r.bundledIndex, err = parseIndex(data)
	if err != nil {
		return nil, fmt.Errorf("bundled template index: %w", err)
	}

	if r.userDir != "" {
		if data, err := os.ReadFile(filepath.Join(r.userDir, indexFile)); err == nil {
			r.userIndex, err = parseIndex(data)
			if err != nil {
				r.userIndex = nil
			}
		}
	}

	return r, nil
}

// SetLogger sets the logger for the resolver.
func (r *Resolver) SetLogger(logger Logger) {
	r.logger = logger
	if r.userDir != "" && r.userIndex == nil {
		// Re-check so a malformed user index is reported now that a
		// logger is attached.
		if data, err := os.ReadFile(filepath.Join(r.userDir, indexFile)); err == nil {
			if _, perr := parseIndex(data); perr != nil {
				logger.Warn("ignoring malformed user template index", "error", perr)
			}
		}
	}
}

// ValidateStatic verifies that every statically configured template name
// can be loaded. Called at startup; a failure here is fatal.
func (r *Resolver) ValidateStatic(names []string) error {
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, err := r.Load(name); err != nil {
			return fmt.Errorf("static template %q: %w", name, err)
		}
	}
	return nil
}

// Resolve picks a template for a device.
//
// staticName, when non-empty, bypasses index matching entirely. Otherwise
// the user index is consulted before the bundled index; the first fully
// matching entry wins. ErrNoMatch means the caller should synthesise
// generic entities.
func (r *Resolver) Resolve(staticName string, slave mbus.SlaveInfo) (*Template, error) {
	if staticName != "" {
		return r.Load(staticName)
	}

	if file, ok := r.userIndex.Lookup(slave); ok {
		tmpl, err := r.Load(file)
		if err == nil {
			return tmpl, nil
		}
		r.logFailureOnce(file, err)
		return nil, fmt.Errorf("%w: user template %q failed to load", ErrNoMatch, file)
	}

	if file, ok := r.bundledIndex.Lookup(slave); ok {
		tmpl, err := r.Load(file)
		if err == nil {
			return tmpl, nil
		}
		r.logFailureOnce(file, err)
		return nil, fmt.Errorf("%w: bundled template %q failed to load", ErrNoMatch, file)
	}

	return nil, fmt.Errorf("%w: manufacturer %q product %q",
		ErrNoMatch, slave.Manufacturer, slave.ProductName)
}

// Load reads a template by file name, user directory first, then the
// bundled set. Loaded templates are cached.
func (r *Resolver) Load(name string) (*Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tmpl, ok := r.cache[name]; ok {
		return tmpl, nil
	}

	data, err := r.read(name)
	if err != nil {
		return nil, err
	}

	tmpl, err := parseTemplate(name, data)
	if err != nil {
		return nil, err
	}

	r.cache[name] = tmpl
	return tmpl, nil
}

// read finds the template bytes with user-over-bundled precedence.
func (r *Resolver) read(name string) ([]byte, error) {
	if r.userDir != "" {
		data, err := os.ReadFile(filepath.Join(r.userDir, name))
		if err == nil {
			return data, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading user template %s: %w", name, err)
		}
	}

	data, err := fs.ReadFile(r.bundled, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return data, nil
}

// logFailureOnce warns about a broken template the first time it is hit.
func (r *Resolver) logFailureOnce(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failed[name] {
		return
	}
	r.failed[name] = true
	r.logger.Warn("template failed to load, falling back to generic entities",
		"template", name,
		"error", err,
	)
}
