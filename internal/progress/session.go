package progress

import (
	"context"
	"sync"
)

const DefaultQueueSize = 16

// Session connects a Tracker to a Renderer running on its own goroutine.
// Publish never blocks the producer of an interactive session; when the queue
// is full the oldest snapshot is discarded. A non-interactive renderer prints
// rows from every snapshot it sees, so once it runs Publish waits for room.
type Session struct {
	renderer *Renderer
	queue    chan Snapshot

	mu      sync.Mutex
	started bool
	closed  bool
	done    chan struct{}
	err     error
}

func NewSession(renderer *Renderer, queueSize int) *Session {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Session{
		renderer: renderer,
		queue:    make(chan Snapshot, queueSize),
		done:     make(chan struct{}),
	}
}

func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true
	go func() {
		defer close(s.done)
		s.err = s.renderer.Run(ctx, s.queue)
	}()
}

func (s *Session) Publish(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.started && !s.renderer.interactive {
		select {
		case s.queue <- snapshot:
		case <-s.done:
		}
		return
	}
	for {
		select {
		case s.queue <- snapshot:
			return
		default:
		}
		select {
		case <-s.queue:
		default:
		}
	}
}

// Close stops accepting snapshots and waits for the renderer to draw the last
// one it received.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if s.started {
			<-s.done
		}
		return s.err
	}
	s.closed = true
	close(s.queue)
	started := s.started
	s.mu.Unlock()

	if !started {
		return nil
	}
	<-s.done
	return s.err
}
