package server

import "sync"

// presence tracks which users hold at least one open event stream.
// This is surface state only: the engine never consults it. It exists so
// the state endpoint can show who is currently connected, the way the
// original check-in clients displayed partner availability.
type presence struct {
	mu     sync.Mutex
	counts map[string]int
}

func newPresence() *presence {
	return &presence{counts: make(map[string]int)}
}

// connect records one more open stream for user.
func (p *presence) connect(user string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[user]++
}

// disconnect records a closed stream for user.
func (p *presence) disconnect(user string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.counts[user] <= 1 {
		delete(p.counts, user)
		return
	}
	p.counts[user]--
}

// online reports whether user has any open stream.
func (p *presence) online(user string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[user] > 0
}
