package pulse

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/vcstech/pulseline-core/internal/gpio"
)

// MockRepository is a test implementation of Repository.
type MockRepository struct {
	mu      sync.Mutex
	records map[string]*Record
	// For testing error paths
	getErr    error
	upsertErr error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{records: make(map[string]*Record)}
}

func (m *MockRepository) Get(_ context.Context, name string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if rec, ok := m.records[name]; ok {
		copy := *rec
		return &copy, nil
	}
	return nil, ErrLineNotFound
}

func (m *MockRepository) Upsert(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	copy := *rec
	m.records[rec.Name] = &copy
	return nil
}

func (m *MockRepository) List(_ context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, rec := range m.records {
		out = append(out, *rec)
	}
	return out, nil
}

func (m *MockRepository) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[name]; !ok {
		return ErrLineNotFound
	}
	delete(m.records, name)
	return nil
}

func (m *MockRepository) get(name string) *Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[name]
}

func newTestRegistry() *Registry {
	return NewRegistry(RegistryConfig{TicksPerSecond: 1000})
}

func TestRegisterDefaults(t *testing.T) {
	installFakeScheduler(t)
	r := newTestRegistry()

	out := gpio.NewSim()
	h, err := r.Register(context.Background(), "led0", out, Binding{Source: "config"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	snap := h.Snapshot()
	want := Snapshot{Name: "led0", OnCycles: 1, OffCycles: 1}
	if snap != want {
		t.Errorf("default snapshot = %+v, want %+v", snap, want)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestRegisterDuplicateName(t *testing.T) {
	installFakeScheduler(t)
	r := newTestRegistry()

	first := gpio.NewSim()
	if _, err := r.Register(context.Background(), "led0", first, Binding{}); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}

	second := gpio.NewSim()
	_, err := r.Register(context.Background(), "led0", second, Binding{})
	if !errors.Is(err, ErrLineExists) {
		t.Fatalf("duplicate Register = %v, want ErrLineExists", err)
	}
	if !second.Closed() {
		t.Error("losing output was not closed on duplicate registration")
	}
	if first.Closed() {
		t.Error("existing line's output was closed by a failed registration")
	}
}

func TestLookupNotFound(t *testing.T) {
	r := newTestRegistry()
	if _, err := r.Lookup("nope"); !errors.Is(err, ErrLineNotFound) {
		t.Errorf("Lookup(nope) = %v, want ErrLineNotFound", err)
	}
}

// TestReferenceCountLaw exercises the teardown-ordering discipline:
// register, N concurrent lookups, unregister, then N releases. The
// output must be released exactly once, and only after the Nth
// release.
func TestReferenceCountLaw(t *testing.T) {
	installFakeScheduler(t)
	r := newTestRegistry()
	const n = 5

	out := gpio.NewSim()
	if _, err := r.Register(context.Background(), "led0", out, Binding{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	handles := make([]*Handle, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := r.Lookup("led0")
			if err != nil {
				t.Errorf("concurrent Lookup failed: %v", err)
				return
			}
			handles[i] = h
		}(i)
	}
	wg.Wait()

	if err := r.Unregister("led0"); err != nil {
		t.Fatalf("Unregister failed: %v", err)
	}

	// Withdrawn: no new handles, but existing ones still work.
	if _, err := r.Lookup("led0"); !errors.Is(err, ErrLineNotFound) {
		t.Errorf("Lookup after Unregister = %v, want ErrLineNotFound", err)
	}
	if _, err := handles[0].WriteAttr(AttrOnCycles, "4"); err != nil {
		t.Errorf("attribute write through surviving handle failed: %v", err)
	}

	for i, h := range handles {
		if out.Closed() {
			t.Fatalf("output closed after only %d of %d releases", i, n)
		}
		h.Release()
	}

	if !out.Closed() {
		t.Fatal("output not closed after final release")
	}
	if got := out.CloseCount(); got != 1 {
		t.Errorf("output closed %d times, want exactly 1", got)
	}
	if out.Level() != gpio.Low {
		t.Error("output not forced low at teardown")
	}
	if r.Count() != 0 {
		t.Errorf("Count() = %d after teardown, want 0", r.Count())
	}

	// Release is idempotent per handle.
	handles[0].Release()
	if out.CloseCount() != 1 {
		t.Error("repeated Release ran teardown again")
	}
}

func TestUnregisterUnknown(t *testing.T) {
	r := newTestRegistry()
	if err := r.Unregister("nope"); !errors.Is(err, ErrLineNotFound) {
		t.Errorf("Unregister(nope) = %v, want ErrLineNotFound", err)
	}
}

func TestWriteAttrPersistsAndPublishes(t *testing.T) {
	installFakeScheduler(t)
	repo := NewMockRepository()
	r := NewRegistry(RegistryConfig{TicksPerSecond: 1000, Repository: repo})

	var published []Snapshot
	r.SetOnStateChange(func(s Snapshot) { published = append(published, s) })

	if _, err := r.Register(context.Background(), "led0", gpio.NewSim(), Binding{Source: "config"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if len(published) != 1 {
		t.Fatalf("registration published %d snapshots, want 1", len(published))
	}

	if _, err := r.WriteAttr(context.Background(), "led0", AttrFreq, "10"); err != nil {
		t.Fatalf("WriteAttr failed: %v", err)
	}

	rec := repo.get("led0")
	if rec == nil {
		t.Fatal("no record persisted")
	}
	if rec.Settings.Freq != 10 {
		t.Errorf("persisted freq = %d, want 10", rec.Settings.Freq)
	}
	if rec.Binding.Source != "config" {
		t.Errorf("persisted binding source = %q, want config (kept across setting writes)", rec.Binding.Source)
	}

	last := published[len(published)-1]
	if last.Freq != 10 {
		t.Errorf("published freq = %d, want 10", last.Freq)
	}

	// Failed writes neither persist nor publish.
	count := len(published)
	if _, err := r.WriteAttr(context.Background(), "led0", AttrFreq, "-3"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("invalid WriteAttr = %v, want ErrInvalidInput", err)
	}
	if len(published) != count {
		t.Error("invalid write published a snapshot")
	}
	if repo.get("led0").Settings.Freq != 10 {
		t.Error("invalid write changed the persisted record")
	}
}

func TestRegisterRestoresPersistedSettings(t *testing.T) {
	fs := installFakeScheduler(t)
	repo := NewMockRepository()
	repo.records["led0"] = &Record{
		Name:    "led0",
		Binding: Binding{Source: "config"},
		Settings: Settings{
			Enabled:   true,
			Freq:      10,
			OnCycles:  2,
			OffCycles: 3,
		},
	}
	r := NewRegistry(RegistryConfig{TicksPerSecond: 1000, Repository: repo})

	out := gpio.NewSim()
	h, err := r.Register(context.Background(), "led0", out, Binding{Source: "config"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	snap := h.Snapshot()
	if !snap.Enabled || snap.Freq != 10 || snap.OnCycles != 2 || snap.OffCycles != 3 {
		t.Errorf("restored snapshot = %+v", snap)
	}
	if out.Level() != gpio.High {
		t.Error("restored enabled line did not assert high")
	}
	if fs.Arms() == 0 {
		t.Error("restored enabled line did not arm its timer")
	}
}

func TestListSortedByName(t *testing.T) {
	installFakeScheduler(t)
	r := newTestRegistry()
	for _, name := range []string{"pump", "led0", "fan"} {
		if _, err := r.Register(context.Background(), name, gpio.NewSim(), Binding{}); err != nil {
			t.Fatalf("Register(%s) failed: %v", name, err)
		}
	}

	snaps := r.List()
	if len(snaps) != 3 {
		t.Fatalf("List() returned %d lines, want 3", len(snaps))
	}
	want := []string{"fan", "led0", "pump"}
	for i, name := range want {
		if snaps[i].Name != name {
			t.Errorf("List()[%d] = %s, want %s", i, snaps[i].Name, name)
		}
	}
}

func TestCloseDestroysAllLines(t *testing.T) {
	installFakeScheduler(t)
	r := newTestRegistry()

	outs := []*gpio.Sim{gpio.NewSim(), gpio.NewSim()}
	for i, out := range outs {
		name := []string{"a", "b"}[i]
		if _, err := r.Register(context.Background(), name, out, Binding{}); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}

	r.Close()

	for i, out := range outs {
		if !out.Closed() {
			t.Errorf("output %d not closed after registry Close", i)
		}
	}
	if r.Count() != 0 {
		t.Errorf("Count() = %d after Close, want 0", r.Count())
	}
}

func TestRegisterRejectsReservedNames(t *testing.T) {
	installFakeScheduler(t)
	r := newTestRegistry()

	// Names become MQTT topic segments, so separators and wildcards
	// must be rejected before a line exists under them.
	for _, name := range []string{"", "a/b", "a+b", "a#b", "+", "#"} {
		out := gpio.NewSim()
		_, err := r.Register(context.Background(), name, out, Binding{})
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Register(%q) = %v, want ErrInvalidInput", name, err)
		}
		if !out.Closed() {
			t.Errorf("Register(%q): output not closed on rejection", name)
		}
	}
	if r.Count() != 0 {
		t.Errorf("Count() = %d after rejected registrations, want 0", r.Count())
	}
}

// TestCallbackSwapDuringWrites detaches and reattaches the state
// callback while attribute writes are publishing. Run with -race: the
// callback fields must be safe to swap against concurrent publication.
func TestCallbackSwapDuringWrites(t *testing.T) {
	installFakeScheduler(t)
	r := newTestRegistry()

	if _, err := r.Register(context.Background(), "led0", gpio.NewSim(), Binding{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			if _, err := r.WriteAttr(context.Background(), "led0", AttrOnCycles, "2"); err != nil {
				t.Errorf("WriteAttr: %v", err)
				return
			}
		}
	}()

	for i := 0; i < 200; i++ {
		r.SetOnStateChange(func(Snapshot) {})
		r.SetOnStateChange(nil)
	}
	<-done
}
