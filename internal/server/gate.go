package server

import "sync"

// previewGate allows one preview render per path at a time. A request that
// is no longer the newest for its path when its turn comes is dropped.
type previewGate struct {
	mu    sync.Mutex
	paths map[string]*gateEntry
}

type gateEntry struct {
	render sync.Mutex
	latest uint64
}

func newPreviewGate() *previewGate {
	return &previewGate{paths: make(map[string]*gateEntry)}
}

func (g *previewGate) enter(path string) (release func(), ok bool) {
	g.mu.Lock()
	e, found := g.paths[path]
	if !found {
		e = &gateEntry{}
		g.paths[path] = e
	}
	e.latest++
	ticket := e.latest
	g.mu.Unlock()

	e.render.Lock()

	g.mu.Lock()
	current := ticket == e.latest
	g.mu.Unlock()
	if !current {
		e.render.Unlock()
		return nil, false
	}
	return e.render.Unlock, true
}

// prune forgets every path not in keep.
func (g *previewGate) prune(keep []string) {
	live := make(map[string]bool, len(keep))
	for _, p := range keep {
		live[p] = true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for p := range g.paths {
		if !live[p] {
			delete(g.paths, p)
		}
	}
}

func (g *previewGate) tickets(path string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok := g.paths[path]; ok {
		return e.latest
	}
	return 0
}
