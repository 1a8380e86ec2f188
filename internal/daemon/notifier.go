package daemon

// ChangeNotifier coalesces settings-change notifications into a channel the
// watcher selects on. Bursts of writes collapse into one pending rescan.
type ChangeNotifier struct {
	ch chan struct{}
}

// NewChangeNotifier creates a notifier with room for one pending signal.
func NewChangeNotifier() *ChangeNotifier {
	return &ChangeNotifier{ch: make(chan struct{}, 1)}
}

// Notify signals a change without blocking.
func (n *ChangeNotifier) Notify() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// C returns the channel that receives change signals.
func (n *ChangeNotifier) C() <-chan struct{} {
	return n.ch
}
