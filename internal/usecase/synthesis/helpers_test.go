package synthesis

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"slack-mock/internal/domain"
)

// среда 12 марта 2025, 15:00 UTC
var testNow = time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)

type stubDirectory struct {
	people   []domain.Person
	channels domain.ChannelConfig
}

func newStubDirectory() *stubDirectory {
	return &stubDirectory{
		people: []domain.Person{
			{Name: "James McGill", Role: "Head of Engineering", Me: true},
			{Name: "Alice Carlysle", Role: "Software Engineer"},
			{Name: "Bob Jenkins", Role: "DevOps Engineer", EmojiHeavy: true},
			{Name: "Carol Diaz", Role: "SRE"},
			{Name: "David Chen", Role: "Software Engineer", Verbose: true},
			{Name: "Eve Park", Role: "Product Manager"},
			{Name: "Frank Ortiz", Role: "Engineering Manager"},
			{Name: "Rovo", Role: domain.RoleAIAssistant},
		},
		channels: domain.ChannelConfig{
			Starred: []domain.Channel{{ID: "itom-4412", Name: "#itom-4412", Topics: []string{"alerts"}}},
			Public: []domain.Channel{
				{ID: "general", Name: "#general"},
				{ID: "CHG-189", Name: "#CHG-189"},
				{ID: "platform", Name: "#platform", Topics: []string{"deployments"}},
			},
			Private: []domain.Channel{{ID: "leads", Name: "#leads", IsPrivate: true}},
			MessageThemes: map[string][]domain.ThemeLine{
				"platform": {{Text: "Deploy train for {service} leaves at 4pm."}},
			},
			GroupDMs: []domain.GroupDM{{ID: "group-1", Name: "Alice, Bob", Members: []string{"Alice Carlysle", "Bob Jenkins"}}},
		},
	}
}

func (d *stubDirectory) Company() domain.Company {
	return domain.Company{Name: "Acme", Industry: "Software Development", Topics: []string{"deployments"}}
}
func (d *stubDirectory) People() []domain.Person        { return d.people }
func (d *stubDirectory) Viewer() domain.Person          { return d.people[0] }
func (d *stubDirectory) Assistant() domain.Person       { return d.people[len(d.people)-1] }
func (d *stubDirectory) Channels() domain.ChannelConfig { return d.channels }
func (d *stubDirectory) Theme() domain.Theme            { return domain.Theme{Name: "light"} }
func (d *stubDirectory) PersonByName(name string) (domain.Person, bool) {
	for _, p := range d.people {
		if p.Name == name {
			return p, true
		}
	}
	return domain.Person{}, false
}

func newTestGenerator(seed uint64, opts Options) (*Generator, *Catalog, *stubDirectory) {
	dir := newStubDirectory()
	catalog := NewCatalog(dir, Scenarios, zerolog.Nop())
	gen := NewGenerator(dir, catalog, Scenarios, NewRandom(seed), nil, opts)
	return gen, catalog, dir
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeTimers struct {
	mu      sync.Mutex
	pending []*fakeTimer
}

func (f *fakeTimers) AfterFunc(d time.Duration, fn func()) domain.Stopper {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{d: d, f: fn}
	f.pending = append(f.pending, t)
	return t
}

// Fire запускает все не остановленные таймеры и возвращает их число.
func (f *fakeTimers) Fire() int {
	f.mu.Lock()
	pending := f.pending
	f.pending = nil
	f.mu.Unlock()
	n := 0
	for _, t := range pending {
		if !t.stopped {
			t.f()
			n++
		}
	}
	return n
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) count(t domain.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

type fakeCompleter struct {
	fragments []string
	err       error
}

func (c fakeCompleter) Stream(_ context.Context, _ string, onFragment func(string)) error {
	for _, f := range c.fragments {
		onFragment(f)
	}
	return c.err
}

type stagedCompleter struct {
	fakeCompleter
	statuses []string
}

func (c stagedCompleter) StreamStaged(ctx context.Context, prompt string, onStatus, onFragment func(string)) error {
	for _, st := range c.statuses {
		onStatus(st)
	}
	return c.Stream(ctx, prompt, onFragment)
}

func newTestEngine(t interface{ Helper() }, completer domain.Completer) (*Engine, *fakeTimers, *recordingPublisher) {
	t.Helper()
	gen, catalog, dir := newTestGenerator(42, Options{})
	timers := &fakeTimers{}
	pub := &recordingPublisher{}
	engine := NewEngine(dir, catalog, gen, pub, Config{
		Clock:     func() time.Time { return testNow },
		AfterFunc: timers.AfterFunc,
		Completer: completer,
		Fallback:  fakeCompleter{fragments: []string{"Local ", "reply"}},
	}, zerolog.Nop())
	engine.Init()
	return engine, timers, pub
}
