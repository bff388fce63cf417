// Package store is the application's action bus: a single-threaded,
// cooperative dispatcher with a middleware chain, a reducer and subscribers.
//
// Dispatch may be called from any goroutine. Actions are processed one at a
// time in arrival order; an action dispatched while another is being processed
// (from a middleware, a subscriber or a command) is queued and handled after
// the current one completes, never interleaved with it.
//
// Blocking work runs as a Cmd on its own goroutine. Like a bubbletea command,
// a Cmd returns the next action to dispatch; its error is collected and
// returned by Settle.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"navkit/internal/model"
)

// DispatchFunc hands an action to the next link of the chain.
type DispatchFunc func(model.Action)

// Cmd is work performed off the dispatch loop. A non-nil action is dispatched
// when it returns; a non-nil error is recorded.
type Cmd func(ctx context.Context) (model.Action, error)

// API is what middleware sees of the store.
type API interface {
	Dispatch(model.Action)
	State() any
	Go(Cmd)
}

// Middleware wraps the dispatch chain.
type Middleware func(api API) func(next DispatchFunc) DispatchFunc

// Reducer computes the next state.
type Reducer[S any] func(state S, action model.Action) S

// Listener is notified after each reduced action.
type Listener[S any] func(action model.Action, state S)

// Option configures a Store.
type Option func(*options)

type options struct {
	middleware []Middleware
	onError    []func(error)
	logger     *zap.Logger
}

// WithMiddleware appends middleware; the first one given sees actions first.
func WithMiddleware(mw ...Middleware) Option {
	return func(o *options) { o.middleware = append(o.middleware, mw...) }
}

// WithErrorHandler registers a hook called for every failed command.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) { o.onError = append(o.onError, fn) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Store holds state of type S.
type Store[S any] struct {
	mu        sync.Mutex
	idle      *sync.Cond
	state     S
	reducer   Reducer[S]
	queue     []model.Action
	draining  bool
	inflight  int
	errs      []error
	listeners map[int]Listener[S]
	nextID    int
	closed    bool

	chain   DispatchFunc
	onError []func(error)
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a store.
func New[S any](initial S, reducer Reducer[S], opts ...Option) *Store[S] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store[S]{
		state:     initial,
		reducer:   reducer,
		listeners: make(map[int]Listener[S]),
		onError:   o.onError,
		logger:    o.logger,
		ctx:       ctx,
		cancel:    cancel,
	}
	s.idle = sync.NewCond(&s.mu)

	api := storeAPI[S]{s}
	chain := DispatchFunc(s.reduce)
	for i := len(o.middleware) - 1; i >= 0; i-- {
		chain = o.middleware[i](api)(chain)
	}
	s.chain = chain
	return s
}

// Dispatch queues an action and, unless another dispatch is already draining
// the queue, processes the queue until it is empty.
func (s *Store[S]) Dispatch(action model.Action) {
	if action == nil {
		return
	}
	s.mu.Lock()
	s.queue = append(s.queue, action)
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.mu.Unlock()

	s.drain()
}

func (s *Store[S]) drain() {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.draining = false
			s.queue = nil
			s.idle.Broadcast()
			s.mu.Unlock()
			panic(r)
		}
	}()

	s.mu.Lock()
	for len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.chain(next)

		s.mu.Lock()
	}
	s.draining = false
	s.idle.Broadcast()
	s.mu.Unlock()
}

func (s *Store[S]) reduce(action model.Action) {
	s.mu.Lock()
	s.state = s.reducer(s.state, action)
	state := s.state
	listeners := make([]Listener[S], 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if l, ok := s.listeners[id]; ok {
			listeners = append(listeners, l)
		}
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(action, state)
	}
}

// State returns the current state.
func (s *Store[S]) State() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers a listener called after every reduced action, in
// subscription order. The returned func removes it.
func (s *Store[S]) Subscribe(l Listener[S]) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Go runs cmd on its own goroutine. Commands started after Close are dropped.
func (s *Store[S]) Go(cmd Cmd) {
	if cmd == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.inflight++
	s.mu.Unlock()

	go func() {
		defer s.finish()
		action, err := s.run(cmd)
		if err != nil {
			s.fail(err)
		}
		if action != nil {
			s.Dispatch(action)
		}
	}()
}

func (s *Store[S]) run(cmd Cmd) (action model.Action, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("store: command panicked: %v", r)
		}
	}()
	return cmd(s.ctx)
}

func (s *Store[S]) fail(err error) {
	s.logger.Warn("command failed", zap.Error(err))
	s.mu.Lock()
	s.errs = append(s.errs, err)
	hooks := append([]func(error){}, s.onError...)
	s.mu.Unlock()
	for _, h := range hooks {
		h(err)
	}
}

func (s *Store[S]) finish() {
	s.mu.Lock()
	s.inflight--
	s.idle.Broadcast()
	s.mu.Unlock()
}

func (s *Store[S]) idleLocked() bool {
	return s.inflight == 0 && !s.draining && len(s.queue) == 0
}

// Settle waits until no command is running and no action is queued, then
// returns the command errors collected since the previous Settle.
func (s *Store[S]) Settle(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.idle.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	s.mu.Lock()
	for !s.idleLocked() && ctx.Err() == nil {
		s.idle.Wait()
	}
	settled := s.idleLocked()
	errs := s.errs
	s.errs = nil
	s.mu.Unlock()

	if !settled {
		errs = append(errs, fmt.Errorf("store: settle: %w", ctx.Err()))
	}
	return errors.Join(errs...)
}

// Close cancels the context handed to running commands and refuses new ones.
func (s *Store[S]) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

type storeAPI[S any] struct {
	s *Store[S]
}

func (a storeAPI[S]) Dispatch(action model.Action) { a.s.Dispatch(action) }
func (a storeAPI[S]) State() any                  { return a.s.State() }
func (a storeAPI[S]) Go(cmd Cmd)                  { a.s.Go(cmd) }
