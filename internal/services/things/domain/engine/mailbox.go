package engine

import "sync"

// mailboxes serializes work per entity id. Entries are dropped once no
// caller holds or waits for them.
type mailboxes struct {
	mu    sync.Mutex
	boxes map[string]*mailbox
}

type mailbox struct {
	mu   sync.Mutex
	refs int
}

func newMailboxes() *mailboxes {
	return &mailboxes{boxes: make(map[string]*mailbox)}
}

// acquire blocks until the caller owns id. The returned function releases it.
func (m *mailboxes) acquire(id string) func() {
	m.mu.Lock()
	box, ok := m.boxes[id]
	if !ok {
		box = &mailbox{}
		m.boxes[id] = box
	}
	box.refs++
	m.mu.Unlock()

	box.mu.Lock()
	return func() {
		box.mu.Unlock()
		m.mu.Lock()
		box.refs--
		if box.refs == 0 {
			delete(m.boxes, id)
		}
		m.mu.Unlock()
	}
}
