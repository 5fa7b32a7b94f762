package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// ErrClosed is returned for requests submitted after Close.
var ErrClosed = errors.New("store: closed")

const defaultQueueSize = 64

// Store serializes every read and read-modify-write against a Backend through
// a single goroutine. Concurrent Update calls are applied one after another,
// so no update is lost to a concurrent writer inside this process; backends
// add their own locking for writers in other processes.
type Store struct {
	backend Backend
	log     logrus.FieldLogger

	reqs      chan request
	done      chan struct{}
	stopped   chan struct{}
	wg        sync.WaitGroup
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

type request struct {
	ctx    context.Context
	view   func(*Document) error
	update ApplyFunc
	result chan error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for backend failures.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithQueueSize sets how many requests may wait for the writer goroutine.
func WithQueueSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.reqs = make(chan request, n)
		}
	}
}

// Open initializes backend (creating an empty document when absent), checks
// that the persisted document decodes, and starts the writer goroutine.
func Open(ctx context.Context, backend Backend, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, errors.New("store: backend is nil")
	}

	s := &Store{
		backend: backend,
		log:     logrus.StandardLogger(),
		reqs:    make(chan request, defaultQueueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := backend.Init(ctx); err != nil {
		return nil, fmt.Errorf("store: init backend: %w", err)
	}
	if _, err := backend.Load(ctx); err != nil {
		return nil, fmt.Errorf("store: load document: %w", err)
	}

	s.wg.Add(1)
	go s.run()

	return s, nil
}

func (s *Store) run() {
	defer s.wg.Done()
	defer close(s.stopped)

	for {
		select {
		case req := <-s.reqs:
			req.result <- s.execute(req)
		case <-s.done:
			for {
				select {
				case req := <-s.reqs:
					req.result <- ErrClosed
				default:
					return
				}
			}
		}
	}
}

func (s *Store) execute(req request) error {
	if err := req.ctx.Err(); err != nil {
		return err
	}

	if req.view != nil {
		doc, err := s.backend.Load(req.ctx)
		if err != nil {
			s.log.WithError(err).Warn("store: load failed")
			return fmt.Errorf("store: load: %w", err)
		}
		return req.view(doc)
	}

	return s.backend.Apply(req.ctx, req.update)
}

func (s *Store) submit(ctx context.Context, req request) error {
	if s == nil || s.closed.Load() {
		return ErrClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}
	req.ctx = ctx
	req.result = make(chan error, 1)

	select {
	case s.reqs <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}

	// Once queued the request runs to completion; the backend observes ctx.
	select {
	case err := <-req.result:
		return err
	case <-s.stopped:
		select {
		case err := <-req.result:
			return err
		default:
			return ErrClosed
		}
	}
}

// View runs fn against a freshly loaded document. fn must not retain doc.
func (s *Store) View(ctx context.Context, fn func(doc *Document) error) error {
	return s.submit(ctx, request{view: fn})
}

// Update runs fn as one read-modify-write unit on a freshly loaded document.
// When fn reports a change the document is persisted, even if fn also
// returns an error; fn's error is returned unchanged.
func (s *Store) Update(ctx context.Context, fn ApplyFunc) error {
	return s.submit(ctx, request{update: fn})
}

// Close stops the writer goroutine, rejects queued requests, and closes the
// backend. It is safe to call more than once.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
		s.wg.Wait()
		s.closeErr = s.backend.Close()
	})
	return s.closeErr
}
