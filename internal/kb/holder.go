package kb

import "sync"

// Holder is the shared handle to the currently loaded knowledge base. The
// watcher swaps in a new knowledge base on file change; readers always get a
// consistent snapshot.
type Holder struct {
	mu sync.RWMutex
	kb *KnowledgeBase
}

// NewHolder creates a holder with an initial knowledge base.
func NewHolder(kb *KnowledgeBase) *Holder {
	return &Holder{kb: kb}
}

// Current returns the currently loaded knowledge base.
func (h *Holder) Current() *KnowledgeBase {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.kb
}

// Swap replaces the knowledge base.
func (h *Holder) Swap(kb *KnowledgeBase) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.kb = kb
}
