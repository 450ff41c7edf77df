// Package registry tracks live sessions by id and owns their runner
// goroutines.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/negarena/internal/domain"
	"github.com/xiaot623/negarena/internal/engine"
	"github.com/xiaot623/negarena/internal/runner"
	"github.com/xiaot623/negarena/internal/session"
)

// ErrClosed is returned by Create after Shutdown.
var ErrClosed = errors.New("registry is shutting down")

// Registry maps session ids to sessions. The lock only guards the map;
// session state has its own synchronization.
type Registry struct {
	engine engine.Engine
	opts   runner.Options

	mu       sync.RWMutex
	sessions map[string]*session.Session
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a registry whose runners step eng with opts.
func New(eng engine.Engine, opts runner.Options) *Registry {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		engine:   eng,
		opts:     opts,
		sessions: make(map[string]*session.Session),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Create registers a new session for cfg and starts its runner. The session
// is visible to Get before the runner's first step.
func (r *Registry) Create(cfg domain.SessionConfig) (*session.Session, error) {
	sess, err := session.New("ses_"+uuid.New().String(), cfg, r.opts.Now())
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	r.sessions[sess.ID] = sess
	r.wg.Add(1)
	r.mu.Unlock()

	run := runner.New(sess, r.engine, r.opts)
	go func() {
		defer r.wg.Done()
		run.Run(r.ctx)
	}()
	return sess, nil
}

// Get returns the session with id or domain.ErrSessionNotFound.
func (r *Registry) Get(id string) (*session.Session, error) {
	r.mu.RLock()
	sess, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return sess, nil
}

// List returns the metadata of matching sessions, newest first.
func (r *Registry) List(filter domain.SessionFilter) []domain.SessionInfo {
	r.mu.RLock()
	all := make([]*session.Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		all = append(all, sess)
	}
	r.mu.RUnlock()

	infos := make([]domain.SessionInfo, 0, len(all))
	for _, sess := range all {
		if info := sess.Info(); filter.Match(info) {
			infos = append(infos, info)
		}
	}
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.After(infos[j].CreatedAt)
		}
		return infos[i].ID < infos[j].ID
	})
	if filter.Limit > 0 && len(infos) > filter.Limit {
		infos = infos[:filter.Limit]
	}
	return infos
}

// Remove drops a terminal session. Live sessions cannot be removed.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	if status := sess.Status(); !status.IsTerminal() {
		return &domain.TransitionError{From: status, Trigger: "delete"}
	}
	delete(r.sessions, id)
	return nil
}

// EndedBefore returns the terminal sessions that ended before cutoff.
func (r *Registry) EndedBefore(cutoff time.Time) []*session.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*session.Session
	for _, sess := range r.sessions {
		info := sess.Info()
		if info.Status.IsTerminal() && info.EndedAt != nil && info.EndedAt.Before(cutoff) {
			out = append(out, sess)
		}
	}
	return out
}

// ActiveCount returns the number of sessions that are not terminal.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, sess := range r.sessions {
		if !sess.Status().IsTerminal() {
			n++
		}
	}
	return n
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Shutdown stops accepting sessions, cancels every runner and waits for them
// until ctx is done.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Printf("INFO: all session runners stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for session runners: %w", ctx.Err())
	}
}
