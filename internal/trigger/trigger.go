// Package trigger is the timer facility behind the job scheduler: recurring
// cron/interval triggers and one-shot timers, addressed by string identity.
// Each identity runs at most one instance at a time; different identities
// run concurrently on their own goroutines. Removing an unknown identity is
// a no-op, and no panic ever escapes a job callback.
package trigger

import (
	"context"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a single job callback. Errors and panics are logged, never
// propagated; the registry keeps firing subsequent jobs regardless.
type Job func(ctx context.Context)

type entry struct {
	id      string
	kind    string // "cron", "interval", "once"
	cronID  cron.EntryID
	timer   *time.Timer
	running bool
}

// Registry owns every registered trigger. The cron runner operates in UTC;
// callers convert venue-local instants before registering.
type Registry struct {
	log zerolog.Logger

	mu      sync.Mutex
	c       *cron.Cron
	entries map[string]*entry
	ctx     context.Context
	cancel  context.CancelFunc
	started bool

	wg sync.WaitGroup
}

func NewRegistry(log zerolog.Logger) *Registry {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		log:     log,
		c:       cron.New(cron.WithParser(parser), cron.WithLocation(time.UTC)),
		entries: map[string]*entry{},
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (r *Registry) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.c.Start()
}

// Stop quits accepting fires and waits for in-flight runs to finish.
// In-flight executions are allowed to complete, not hard-killed; ctx bounds
// how long the wait may take.
func (r *Registry) Stop(ctx context.Context) {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	for _, e := range r.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	r.entries = map[string]*entry{}
	c := r.c
	r.mu.Unlock()

	<-c.Stop().Done()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		r.log.Warn().Msg("shutdown timed out waiting for in-flight jobs")
	}
}

// AddCron registers a recurring trigger with a 5- or 6-field (seconds) cron
// spec, replacing any existing trigger with the same id.
func (r *Registry) AddCron(id, spec string, job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(id)

	cronID, err := r.c.AddFunc(spec, func() { r.fire(id, job) })
	if err != nil {
		return err
	}
	r.entries[id] = &entry{id: id, kind: "cron", cronID: cronID}
	return nil
}

// AddInterval registers a recurring trigger firing every d.
func (r *Registry) AddInterval(id string, d time.Duration, job Job) error {
	return r.AddCron(id, "@every "+d.String(), job)
}

// RunAt registers a one-shot trigger firing at the given instant. Instants
// in the past fire immediately. The entry removes itself after firing.
func (r *Registry) RunAt(id string, at time.Time, job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(id)

	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}
	e := &entry{id: id, kind: "once"}
	e.timer = time.AfterFunc(delay, func() {
		r.fire(id, job)
		r.Remove(id)
	})
	r.entries[id] = e
}

// RunNow fires a job once, immediately and asynchronously, under the
// identity's non-overlap guard. Used for the poll job's startup run.
func (r *Registry) RunNow(id string, job Job) {
	go r.fire(id, job)
}

// Remove deregisters a trigger. Unknown or already-removed ids are ignored.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(id)
}

// RemovePrefix deregisters every trigger whose id starts with prefix.
func (r *Registry) RemovePrefix(prefix string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.entries {
		if strings.HasPrefix(id, prefix) {
			r.removeLocked(id)
		}
	}
}

// RemoveAll deregisters every trigger.
func (r *Registry) RemoveAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.entries {
		r.removeLocked(id)
	}
}

func (r *Registry) removeLocked(id string) {
	e, ok := r.entries[id]
	if !ok {
		return
	}
	if e.kind == "once" {
		if e.timer != nil {
			e.timer.Stop()
		}
	} else {
		r.c.Remove(e.cronID)
	}
	delete(r.entries, id)
}

// IDs returns the registered trigger identities, sorted.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for id := range r.entries {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	return ok
}

// fire runs a job under the identity's non-overlap guard. A still-running
// previous instance causes the new fire to be skipped, not queued.
func (r *Registry) fire(id string, job Job) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok && e.running {
		r.mu.Unlock()
		r.log.Debug().Str("job", id).Msg("previous run still in flight, skipping fire")
		return
	}
	if ok {
		e.running = true
	}
	ctx := r.ctx
	r.mu.Unlock()

	r.wg.Add(1)
	defer r.wg.Done()
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Str("job", id).Any("panic", rec).
				Str("stack", string(debug.Stack())).Msg("panic in job callback")
		}
		r.mu.Lock()
		if e, ok := r.entries[id]; ok {
			e.running = false
		}
		r.mu.Unlock()
	}()

	job(ctx)
}
