package gateway

import (
	"sort"
	"sync"
)

// Directory is the set of live sessions consulted when a shared teleport
// queue is drained.
type Directory struct {
	mu   sync.RWMutex
	live map[string]bool
}

func NewDirectory() *Directory {
	return &Directory{live: map[string]bool{}}
}

func (d *Directory) Add(id string) {
	d.mu.Lock()
	d.live[id] = true
	d.mu.Unlock()
}

func (d *Directory) Remove(id string) {
	d.mu.Lock()
	delete(d.live, id)
	d.mu.Unlock()
}

func (d *Directory) Alive(id string) bool {
	if d == nil {
		return true
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.live[id]
}

func (d *Directory) List() []string {
	d.mu.RLock()
	out := make([]string, 0, len(d.live))
	for id := range d.live {
		out = append(out, id)
	}
	d.mu.RUnlock()
	sort.Strings(out)
	return out
}
