package protocol

import (
	"log/slog"
	"sync"
)

// Subscription cancels one registered observer.
type Subscription interface {
	Unsubscribe()
}

// Subject is a typed observer list. The zero value is ready to use.
type Subject[T any] struct {
	mu        sync.RWMutex
	nextID    uint64
	observers map[uint64]func(T)
	order     []uint64
	logger    *slog.Logger
}

// SetLogger sets where observer panics are reported. Nil means
// slog.Default.
func (s *Subject[T]) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger = logger
}

func (s *Subject[T]) Subscribe(fn func(T)) Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.observers == nil {
		s.observers = make(map[uint64]func(T))
	}

	s.nextID++
	id := s.nextID
	s.observers[id] = fn
	s.order = append(s.order, id)

	return &subscription[T]{subject: s, id: id}
}

// Emit calls every observer in subscription order. A panicking observer does
// not stop the others.
func (s *Subject[T]) Emit(v T) {
	s.mu.RLock()
	logger := s.logger
	fns := make([]func(T), 0, len(s.order))

	for _, id := range s.order {
		if fn, ok := s.observers[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.mu.RUnlock()

	if logger == nil {
		logger = slog.Default()
	}

	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Observer panicked", "panic", r)
				}
			}()
			fn(v)
		}()
	}
}

func (s *Subject[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.observers)
}

func (s *Subject[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.observers[id]; !ok {
		return
	}

	delete(s.observers, id)

	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)

			break
		}
	}
}

type subscription[T any] struct {
	subject *Subject[T]
	id      uint64
	once    sync.Once
}

func (s *subscription[T]) Unsubscribe() {
	s.once.Do(func() { s.subject.remove(s.id) })
}

// Subscriptions groups several subscriptions for a single Unsubscribe.
type Subscriptions []Subscription

func (ss Subscriptions) Unsubscribe() {
	for _, s := range ss {
		s.Unsubscribe()
	}
}
