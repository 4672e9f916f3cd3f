package pulse

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/vcstech/pulseline-core/internal/gpio"
)

// Registry owns the set of live lines, keyed by name. It mediates
// creation and teardown through reference-counted handles: a line is
// destroyed only when its last handle is released, so withdrawing a
// binding while attribute handles are open is always safe.
type Registry struct {
	tps    int
	repo   Repository
	logger Logger

	// cbMu guards the two callback fields. Writes happen at control
	// surface attach/detach; reads happen on every publication, so the
	// callbacks are snapshotted under a read lock and invoked outside it.
	cbMu sync.RWMutex

	// onState, if set, receives a snapshot after every applied
	// attribute write and registration.
	onState func(Snapshot)

	// onDegraded, if set, receives persistent tick failures.
	onDegraded func(name string, err error)

	// mu guards the map and every line's refs/withdrawn fields. It is
	// never held across line teardown or output I/O.
	mu    sync.Mutex
	lines map[string]*Line
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// TicksPerSecond is the resolution of the underlying clock: the
	// highest pulse frequency a line can be driven at. Frequencies
	// above it are clamped.
	TicksPerSecond int

	// Repository persists line settings across restarts. Optional;
	// nil disables persistence.
	Repository Repository

	// Logger is optional; defaults to a no-op logger.
	Logger Logger
}

// defaultTicksPerSecond is millisecond resolution, the resolution of
// a conventional low-resolution system timer.
const defaultTicksPerSecond = 1000

// NewRegistry creates an empty line registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.TicksPerSecond <= 0 {
		cfg.TicksPerSecond = defaultTicksPerSecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Registry{
		tps:    cfg.TicksPerSecond,
		repo:   cfg.Repository,
		logger: logger,
		lines:  make(map[string]*Line),
	}
}

// TicksPerSecond returns the registry's clock resolution.
func (r *Registry) TicksPerSecond() int { return r.tps }

// SetOnStateChange installs the state publication callback. Should be
// called before lines are registered so no publication is lost; safe
// to call at any time, including concurrently with attribute writes.
func (r *Registry) SetOnStateChange(fn func(Snapshot)) {
	r.cbMu.Lock()
	r.onState = fn
	r.cbMu.Unlock()
}

// SetOnDegraded installs the degraded-line callback, invoked when a
// line's timer path repeatedly fails to assert its output. Must be
// called before lines are registered: each line captures it at
// Register time.
func (r *Registry) SetOnDegraded(fn func(name string, err error)) {
	r.cbMu.Lock()
	r.onDegraded = fn
	r.cbMu.Unlock()
}

// Handle is a reference-counted access token to a line. Release is
// idempotent per handle; the line is destroyed when the last handle
// across the registry is released.
type Handle struct {
	reg  *Registry
	line *Line
	once sync.Once
}

// Name returns the referenced line's name.
func (h *Handle) Name() string { return h.line.name }

// Snapshot returns the referenced line's current state.
func (h *Handle) Snapshot() Snapshot { return h.line.Snapshot() }

// ReadAttr reads a control attribute from the referenced line.
func (h *Handle) ReadAttr(attr string) (string, error) { return h.line.ReadAttr(attr) }

// WriteAttr writes a control attribute on the referenced line.
func (h *Handle) WriteAttr(attr, value string) (int, error) { return h.line.WriteAttr(attr, value) }

// Release drops this handle's reference. The last release across all
// handles tears the line down: timer cancelled, output forced low and
// closed exactly once, entry removed from the registry.
func (h *Handle) Release() {
	h.once.Do(func() { h.reg.release(h.line) })
}

// Register binds a new line under name with an exclusively owned
// output. The line starts at its default state (disabled, steady low,
// 1/1 duty); if a repository holds settings for the name they are
// restored, which may start pulsing immediately.
//
// On any failure, including a duplicate name, the output is closed
// before returning. The returned handle is the registry's own
// reference; it is released by Unregister.
func (r *Registry) Register(ctx context.Context, name string, output gpio.Output, binding Binding) (*Handle, error) {
	if name == "" {
		_ = output.Close()
		return nil, fmt.Errorf("%w: line name cannot be empty", ErrInvalidInput)
	}
	// Names become MQTT topic segments; separator and wildcard
	// characters would corrupt the control namespace.
	if strings.ContainsAny(name, "/+#") {
		_ = output.Close()
		return nil, fmt.Errorf("%w: line name %q contains a reserved character", ErrInvalidInput, name)
	}

	line := newLine(name, output, r.tps, r.logger)
	r.cbMu.RLock()
	line.onDegraded = r.onDegraded
	r.cbMu.RUnlock()

	r.mu.Lock()
	if _, exists := r.lines[name]; exists {
		r.mu.Unlock()
		_ = output.Close()
		return nil, ErrLineExists
	}
	r.lines[name] = line
	r.mu.Unlock()

	handle := &Handle{reg: r, line: line}

	restored := r.restoreSettings(ctx, line)
	r.persist(ctx, line, binding)

	r.logger.Info("line registered",
		"line", name, "source", binding.Source, "restored", restored)
	r.publish(line)
	return handle, nil
}

// Lookup returns a new handle to a live line, incrementing its
// reference count. Fails with ErrLineNotFound if the name is absent or
// the binding has been withdrawn.
func (r *Registry) Lookup(name string) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	line, ok := r.lines[name]
	if !ok || line.withdrawn {
		return nil, ErrLineNotFound
	}
	line.refs++
	return &Handle{reg: r, line: line}, nil
}

// Unregister marks the line's binding withdrawn and drops the
// registry's own reference. Handles already obtained by Lookup keep
// the entity alive; destruction happens when the last of them is
// released.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	line, ok := r.lines[name]
	if !ok || line.withdrawn {
		r.mu.Unlock()
		return ErrLineNotFound
	}
	line.withdrawn = true
	r.mu.Unlock()

	r.logger.Info("line unregistered", "line", name)
	r.release(line)
	return nil
}

// release drops one reference; the last one runs teardown.
func (r *Registry) release(line *Line) {
	r.mu.Lock()
	line.refs--
	last := line.refs == 0
	if last {
		delete(r.lines, line.name)
	}
	remaining := line.refs
	r.mu.Unlock()

	if last {
		line.teardown()
		r.logger.Info("line destroyed", "line", line.name)
		return
	}
	r.logger.Debug("line handle released", "line", line.name, "refs", remaining)
}

// ReadAttr reads one attribute of the named line through a short-lived
// handle.
func (r *Registry) ReadAttr(name, attr string) (string, error) {
	h, err := r.Lookup(name)
	if err != nil {
		return "", err
	}
	defer h.Release()
	return h.ReadAttr(attr)
}

// WriteAttr writes one attribute of the named line through a
// short-lived handle. On success the new settings are persisted and
// the state publication callback fires.
func (r *Registry) WriteAttr(ctx context.Context, name, attr, value string) (int, error) {
	h, err := r.Lookup(name)
	if err != nil {
		return 0, err
	}
	defer h.Release()

	n, err := h.WriteAttr(attr, value)
	if err != nil {
		return 0, err
	}

	r.persist(ctx, h.line, Binding{})
	r.publish(h.line)
	return n, nil
}

// Snapshot returns the named line's current state.
func (r *Registry) Snapshot(name string) (Snapshot, error) {
	h, err := r.Lookup(name)
	if err != nil {
		return Snapshot{}, err
	}
	defer h.Release()
	return h.Snapshot(), nil
}

// List returns snapshots of all live lines, sorted by name.
func (r *Registry) List() []Snapshot {
	r.mu.Lock()
	lines := make([]*Line, 0, len(r.lines))
	for _, l := range r.lines {
		if !l.withdrawn {
			lines = append(lines, l)
		}
	}
	r.mu.Unlock()

	snaps := make([]Snapshot, 0, len(lines))
	for _, l := range lines {
		snaps = append(snaps, l.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Name < snaps[j].Name })
	return snaps
}

// Count returns the number of live lines.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lines)
}

// Close unregisters every remaining line. Lines still referenced by
// outstanding handles are destroyed when those handles are released.
func (r *Registry) Close() {
	r.mu.Lock()
	names := make([]string, 0, len(r.lines))
	for name, line := range r.lines {
		if !line.withdrawn {
			names = append(names, name)
		}
	}
	r.mu.Unlock()

	for _, name := range names {
		if err := r.Unregister(name); err != nil && !errors.Is(err, ErrLineNotFound) {
			r.logger.Warn("unregister at shutdown failed", "line", name, "error", err)
		}
	}
}

// restoreSettings applies persisted settings to a freshly registered
// line through the validated write path. Returns true if a record was
// found.
func (r *Registry) restoreSettings(ctx context.Context, line *Line) bool {
	if r.repo == nil {
		return false
	}
	rec, err := r.repo.Get(ctx, line.name)
	if err != nil {
		if !errors.Is(err, ErrLineNotFound) {
			r.logger.Warn("loading persisted settings failed", "line", line.name, "error", err)
		}
		return false
	}

	line.mu.Lock()
	line.onCycles = rec.Settings.OnCycles
	line.offCycles = rec.Settings.OffCycles
	line.setFrequencyLocked(rec.Settings.Freq)
	line.applyStatusLocked(rec.Settings.Enabled)
	line.mu.Unlock()
	return true
}

// persist upserts the line's record. A zero-value binding keeps the
// stored one. Persistence failures are logged but never fail the
// write: the in-memory state is already applied.
func (r *Registry) persist(ctx context.Context, line *Line, binding Binding) {
	if r.repo == nil {
		return
	}

	if binding == (Binding{}) {
		if rec, err := r.repo.Get(ctx, line.name); err == nil {
			binding = rec.Binding
		}
	}

	rec := &Record{
		Name:     line.name,
		Binding:  binding,
		Settings: line.Settings(),
	}
	if err := r.repo.Upsert(ctx, rec); err != nil {
		r.logger.Warn("persisting line settings failed", "line", line.name, "error", err)
	}
}

// publish fires the state publication callback.
func (r *Registry) publish(line *Line) {
	r.cbMu.RLock()
	fn := r.onState
	r.cbMu.RUnlock()
	if fn != nil {
		fn(line.Snapshot())
	}
}
