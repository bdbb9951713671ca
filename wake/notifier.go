// wake/notifier.go
package wake

// Notifier is a channel-backed Waker for blocking awaits on hosted
// builds and in tests. Wakes are coalesced through a capacity-1 channel:
// callers must re-check their condition after every receive.
type Notifier struct {
	ch chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{}, 1)}
}

// Wake is non-blocking and idempotent; extra wakes coalesce.
func (n *Notifier) Wake() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// Sleep returns the channel a waiter blocks on until the next Wake.
func (n *Notifier) Sleep() <-chan struct{} { return n.ch }
