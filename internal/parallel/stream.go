package parallel

import (
	"fmt"
	"sync"
)

// streamDepth bounds the number of queued launches before Launch blocks.
const streamDepth = 64

// Stream is an in-order asynchronous work queue.
//
// Launch and Enqueue return immediately; submitted work runs on a dedicated
// goroutine in submission order, and the threads of a single launch run
// concurrently. Synchronize is the completion fence: it blocks until every
// submission has finished and reports the first failure. After a failure the
// remaining submissions are skipped until Synchronize clears the error.
type Stream struct {
	name string
	cfg  Config

	queue   chan task
	pending sync.WaitGroup

	// sendMu orders sends on queue against its close.
	sendMu sync.RWMutex
	closed bool

	mu   sync.Mutex
	err  error
	done chan struct{}
}

type task struct {
	name string
	run  func() error
}

// NewStream starts a stream whose grids are spread over cfg.NumWorkers
// goroutines.
func NewStream(name string, cfg Config) *Stream {
	s := &Stream{
		name:  name,
		cfg:   cfg,
		queue: make(chan task, streamDepth),
		done:  make(chan struct{}),
	}
	go s.loop()
	return s
}

// Name returns the stream name.
func (s *Stream) Name() string {
	return s.name
}

// Launch enqueues a grid of n threads running kernel(i).
func (s *Stream) Launch(name string, n int, kernel func(i int)) {
	s.Enqueue(name, func() error {
		return runGrid(n, kernel, s.cfg)
	})
}

// Enqueue submits an arbitrary ordered task, typically a host-side step that
// drives an external device.
func (s *Stream) Enqueue(name string, fn func() error) {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.closed {
		s.mu.Lock()
		if s.err == nil {
			s.err = fmt.Errorf("parallel: stream %s: launch %s after close", s.name, name)
		}
		s.mu.Unlock()
		return
	}
	s.pending.Add(1)
	s.queue <- task{name: name, run: fn}
}

// Synchronize waits for all submitted work and returns the first error
// raised since the previous Synchronize.
func (s *Stream) Synchronize() error {
	s.pending.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.err
	s.err = nil
	return err
}

// Close drains the stream, stops its goroutine and returns the first error
// raised since the previous Synchronize. Enqueue after Close records an
// error instead of running.
func (s *Stream) Close() error {
	s.sendMu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.sendMu.Unlock()
	<-s.done
	return s.Synchronize()
}

func (s *Stream) loop() {
	defer close(s.done)
	for t := range s.queue {
		s.mu.Lock()
		failed := s.err != nil
		s.mu.Unlock()
		if !failed {
			if err := t.run(); err != nil {
				s.mu.Lock()
				if s.err == nil {
					s.err = fmt.Errorf("parallel: stream %s: %s: %w", s.name, t.name, err)
				}
				s.mu.Unlock()
			}
		}
		s.pending.Done()
	}
}

// runGrid executes kernel over [0, n) and converts a panic in any thread
// into an error.
func runGrid(n int, kernel func(i int), cfg Config) error {
	var (
		once sync.Once
		err  error
	)
	ForChunks(n, func(start, end int) {
		defer func() {
			if r := recover(); r != nil {
				once.Do(func() { err = fmt.Errorf("kernel panic: %v", r) })
			}
		}()
		for i := start; i < end; i++ {
			kernel(i)
		}
	}, cfg)
	return err
}
