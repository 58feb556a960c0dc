package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"cryptocoffee/core/events"
	"cryptocoffee/core/types"
)

const streamHistoryLimit = 2048

// Notification is a committed ledger event with its stream position.
type Notification struct {
	Sequence   uint64            `json:"sequence"`
	Cursor     string            `json:"cursor"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	Timestamp  int64             `json:"timestamp"`
}

type typedEvent interface {
	Event() *types.Event
}

func cloneNotification(n Notification) Notification {
	cloned := n
	if n.Attributes != nil {
		cloned.Attributes = make(map[string]string, len(n.Attributes))
		for k, v := range n.Attributes {
			cloned.Attributes[k] = v
		}
	}
	return cloned
}

func (n *Node) publish(evt events.Event) {
	typed, ok := evt.(typedEvent)
	if !ok {
		return
	}
	payload := typed.Event()
	if payload == nil {
		return
	}

	n.streamMu.Lock()
	if n.streamSubs == nil {
		n.streamSubs = make(map[uint64]chan Notification)
	}
	n.streamSeq++
	update := Notification{
		Sequence:   n.streamSeq,
		Cursor:     strconv.FormatUint(n.streamSeq, 10),
		Type:       payload.Type,
		Attributes: payload.Attributes,
		Timestamp:  n.now().Unix(),
	}
	n.streamHistory = append(n.streamHistory, cloneNotification(update))
	if len(n.streamHistory) > streamHistoryLimit {
		excess := len(n.streamHistory) - streamHistoryLimit
		trimmed := make([]Notification, streamHistoryLimit)
		copy(trimmed, n.streamHistory[excess:])
		n.streamHistory = trimmed
	}
	// Sends happen under the lock so cancel cannot close a channel mid-send.
	for _, ch := range n.streamSubs {
		select {
		case ch <- cloneNotification(update):
		default:
		}
	}
	n.streamMu.Unlock()
}

// Subscribe registers a subscriber for notifications after cursor. It returns
// the live channel, a cancel function, and the retained backlog after cursor.
// Slow subscribers miss live notifications rather than blocking the ledger.
func (n *Node) Subscribe(ctx context.Context, cursor string) (<-chan Notification, func(), []Notification, error) {
	if n == nil {
		return nil, nil, nil, fmt.Errorf("node not initialised")
	}
	updates := make(chan Notification, 32)

	var since uint64
	if trimmed := strings.TrimSpace(cursor); trimmed != "" {
		parsed, err := strconv.ParseUint(trimmed, 10, 64)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("invalid cursor %q", cursor)
		}
		since = parsed
	}

	n.streamMu.Lock()
	if n.streamSubs == nil {
		n.streamSubs = make(map[uint64]chan Notification)
	}
	id := n.streamNextID
	n.streamNextID++
	n.streamSubs[id] = updates
	backlog := make([]Notification, 0, len(n.streamHistory))
	for _, entry := range n.streamHistory {
		if entry.Sequence > since {
			backlog = append(backlog, cloneNotification(entry))
		}
	}
	n.streamMu.Unlock()

	var once sync.Once
	done := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(done)
			n.streamMu.Lock()
			if sub, ok := n.streamSubs[id]; ok {
				delete(n.streamSubs, id)
				close(sub)
			}
			n.streamMu.Unlock()
		})
	}

	if ctx != nil {
		go func() {
			select {
			case <-ctx.Done():
				cancel()
			case <-done:
			}
		}()
	}

	return updates, cancel, backlog, nil
}
