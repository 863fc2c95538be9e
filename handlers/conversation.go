package handlers

import "sync"

// step is where a chat currently stands in a multi-message exchange.
type step int

const (
	stepNone step = iota
	stepRegisterName
	stepRegisterSurname
	stepRegisterPhone
	stepRegisterConfirm
	stepFindKey
	stepRequestKey
	stepComment
)

// conversation accumulates the answers of one chat across messages.
type conversation struct {
	step    step
	name    string
	surname string
	phone   string
	key     string
}

// conversations tracks per-chat state. Chats are independent; the map is
// only locked for lookups and swaps.
type conversations struct {
	mu sync.Mutex
	m  map[string]*conversation
}

func newConversations() *conversations {
	return &conversations{m: make(map[string]*conversation)}
}

// get returns the live conversation for chatID, creating an idle one.
func (c *conversations) get(chatID string) *conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.m[chatID]
	if !ok {
		conv = &conversation{}
		c.m[chatID] = conv
	}
	return conv
}

// clear resets the chat to idle.
func (c *conversations) clear(chatID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, chatID)
}
