package session

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/tactline/internal/compiler"
	"github.com/roach88/tactline/internal/engine"
	"github.com/roach88/tactline/internal/ir"
	"github.com/roach88/tactline/internal/store"
)

// Session is one caller's solver. All operations on a session are
// serialized by its mutex; distinct sessions share no mutable state.
type Session struct {
	ID       string
	KBSource string
	KBHash   string

	mu      sync.Mutex
	solver  *engine.Solver
	epoch   int
	pending []engine.TactInput
}

// Registry maps session identities to solvers.
//
// Thread-safety: Registry is safe for concurrent use. The registry lock
// only guards the session map; solver work happens under the session lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	kbMu  sync.Mutex
	kbs   map[string]*ir.KnowledgeBase
	loads singleflight.Group

	store      *store.Store
	ids        IDGenerator
	logger     *slog.Logger
	engineOpts []engine.Option
}

// Option configures a Registry.
type Option func(*Registry)

// WithStore logs every committed tact to st.
func WithStore(st *store.Store) Option {
	return func(r *Registry) {
		r.store = st
	}
}

// WithIDGenerator sets the session ID generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Registry) {
		r.ids = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithEngineOptions passes options to every solver the registry creates.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(r *Registry) {
		r.engineOpts = append(r.engineOpts, opts...)
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		kbs:      make(map[string]*ir.KnowledgeBase),
		ids:      UUIDv7Generator{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LoadKB compiles and validates the knowledge base in dir.
// Results are cached per directory, and concurrent loads of the same
// directory share one compilation.
func (r *Registry) LoadKB(dir string) (*ir.KnowledgeBase, error) {
	dir, err := kbKey(dir)
	if err != nil {
		return nil, err
	}

	r.kbMu.Lock()
	kb, ok := r.kbs[dir]
	r.kbMu.Unlock()
	if ok {
		return kb, nil
	}

	v, err, shared := r.loads.Do(dir, func() (any, error) {
		r.kbMu.Lock()
		cached, ok := r.kbs[dir]
		r.kbMu.Unlock()
		if ok {
			return cached, nil
		}

		kb, err := compiler.LoadKB(dir)
		if err != nil {
			return nil, err
		}
		if errs := compiler.ValidateKB(kb); len(errs) > 0 {
			return nil, &KBError{Source: dir, Errors: errs}
		}
		for _, w := range compiler.AnalyzeBindings(kb) {
			r.logger.Warn("knowledge base binding cycle", "source", dir, "path", w.Path)
		}
		r.kbMu.Lock()
		r.kbs[dir] = kb
		r.kbMu.Unlock()
		return kb, nil
	})
	if err != nil {
		return nil, err
	}
	r.logger.Debug("knowledge base loaded", "source", dir, "shared", shared)
	return v.(*ir.KnowledgeBase), nil
}

// kbKey is the absolute, cleaned form of a knowledge-base directory.
// Spellings of the same directory share one cache entry.
func kbKey(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("knowledge base %s: %w", dir, err)
	}
	return abs, nil
}

// Create loads the knowledge base in dir and starts a new session on it.
// The session records the absolute directory as its source.
func (r *Registry) Create(ctx context.Context, dir string) (*Session, error) {
	kb, err := r.LoadKB(dir)
	if err != nil {
		return nil, err
	}
	source, err := kbKey(dir)
	if err != nil {
		return nil, err
	}
	return r.CreateWithKB(ctx, kb, source)
}

// CreateWithKB starts a new session on an already validated knowledge base.
// source is recorded for later replay and may be empty.
func (r *Registry) CreateWithKB(ctx context.Context, kb *ir.KnowledgeBase, source string) (*Session, error) {
	hash, err := ir.KBHash(kb)
	if err != nil {
		return nil, err
	}
	sess := &Session{ID: r.ids.Generate(), KBSource: source, KBHash: hash}
	sess.solver, err = engine.New(kb, append([]engine.Option{
		engine.WithLogger(r.logger.With("session", sess.ID)),
	}, r.engineOpts...)...)
	if err != nil {
		return nil, err
	}

	if r.store != nil {
		if err := r.store.CreateSession(ctx, store.Session{ID: sess.ID, KBHash: hash, KBSource: source}); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	if _, dup := r.sessions[sess.ID]; dup {
		r.mu.Unlock()
		return nil, fmt.Errorf("session %s already exists", sess.ID)
	}
	r.sessions[sess.ID] = sess
	r.mu.Unlock()

	r.logger.Info("session created", "session", sess.ID, "source", source)
	return sess, nil
}

// Get returns the session with the given identity.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sess, nil
}

// IDs returns every live session identity in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Delete removes a session. Its tact log, if any, is removed too.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if r.store != nil {
		if err := r.store.DeleteSession(ctx, id); err != nil {
			return err
		}
	}
	r.logger.Info("session deleted", "session", id)
	return nil
}

// Reset returns the session's solver to the not-started state. With a
// store, the session moves to a new epoch of its tact log.
func (r *Registry) Reset(ctx context.Context, id string) error {
	sess, err := r.Get(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if r.store != nil {
		epoch, err := r.store.ResetSession(ctx, id)
		if err != nil {
			return err
		}
		sess.epoch = epoch
	}
	sess.solver.Reset()
	sess.pending = nil
	return nil
}

// UpdateWM applies working-memory updates to the session's solver.
// Accepted updates are remembered and logged with the next tact.
func (r *Registry) UpdateWM(id string, items []ir.WMItem, clearBefore bool) error {
	sess, err := r.Get(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.solver.UpdateWM(items, clearBefore); err != nil {
		return err
	}
	sess.pending = append(sess.pending, engine.TactInput{Items: slices.Clone(items), ClearBefore: clearBefore})
	return nil
}

// ProcessTact runs one tact on the session's solver.
//
// With a store, the committed tact is logged together with the updates
// that preceded it. A logging failure is returned as an error but does not
// roll the solver back: the tact stays committed in memory.
func (r *Registry) ProcessTact(ctx context.Context, id string) (*ir.TactResult, error) {
	sess, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	res, err := sess.solver.ProcessTact()
	if err != nil {
		return nil, err
	}
	inputs := sess.pending
	sess.pending = nil

	if r.store != nil {
		if err := r.store.WriteTact(ctx, id, sess.epoch, inputs, res); err != nil {
			return res, fmt.Errorf("persist tact %d: %w", res.Tact, err)
		}
	}
	return res, nil
}

// Timeline returns a snapshot of the session's timeline.
func (r *Registry) Timeline(id string) (ir.TimelineSnapshot, error) {
	sess, err := r.Get(id)
	if err != nil {
		return ir.TimelineSnapshot{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.solver.Timeline().Snapshot(), nil
}

// CurrentTact returns the session's last committed tact, or
// engine.NotStarted.
func (r *Registry) CurrentTact(id string) (int, error) {
	sess, err := r.Get(id)
	if err != nil {
		return 0, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.solver.CurrentTact(), nil
}
