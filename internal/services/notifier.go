package services

import (
	"context"
	"sync"
)

// Notifier wakes live feeds when a session changes. A nudge only triggers
// an early poll; what gets emitted is still decided by the poll itself.
type Notifier interface {
	Notify(ctx context.Context, sessionID uint)
	// Subscribe returns a channel of nudges for the session and a func that
	// releases the subscription.
	Subscribe(ctx context.Context, sessionID uint) (<-chan struct{}, func())
}

// LocalNotifier delivers nudges inside a single process.
type LocalNotifier struct {
	mu   sync.Mutex
	next int
	subs map[uint]map[int]chan struct{}
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{subs: make(map[uint]map[int]chan struct{})}
}

func (n *LocalNotifier) Notify(_ context.Context, sessionID uint) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subs[sessionID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (n *LocalNotifier) Subscribe(_ context.Context, sessionID uint) (<-chan struct{}, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++
	ch := make(chan struct{}, 1)
	if n.subs[sessionID] == nil {
		n.subs[sessionID] = make(map[int]chan struct{})
	}
	n.subs[sessionID][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs[sessionID], id)
			if len(n.subs[sessionID]) == 0 {
				delete(n.subs, sessionID)
			}
		})
	}
}
