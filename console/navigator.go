package console

import "sync"

// Navigator moves the user interface to another location, e.g. the login screen once the
// session can no longer be refreshed.
type Navigator interface {
	Navigate(path string)
	Location() string
}

// MemoryNavigator records where the console was sent. It is the navigator of the CLI.
type MemoryNavigator struct {
	mu       sync.Mutex
	location string
	history  []string
}

var _ Navigator = (*MemoryNavigator)(nil)

func NewMemoryNavigator(start string) *MemoryNavigator {
	return &MemoryNavigator{location: start}
}

func (n *MemoryNavigator) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.location = path
	n.history = append(n.history, path)
}

func (n *MemoryNavigator) Location() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.location
}

// History returns every path navigated to, oldest first.
func (n *MemoryNavigator) History() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.history...)
}
