package node

import (
	"sync"

	"github.com/google/uuid"
)

const defaultSubscriptionBuffer = 256

var (
	traitNamespace      = uuid.NewSHA1(uuid.NameSpaceURL, []byte("resourcekit://topics/trait"))
	collectionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("resourcekit://topics/collection"))
)

// TraitTopic identifies the changes of one device trait.
func TraitTopic(device, trait string) uuid.UUID {
	return uuid.NewSHA1(traitNamespace, []byte(device+"\x00"+trait))
}

// CollectionTopic identifies the changes of one collection.
func CollectionTopic(collection string) uuid.UUID {
	return uuid.NewSHA1(collectionNamespace, []byte(collection))
}

// Hub fans out changes to the open pull streams of a node. Publish never
// blocks: a subscriber whose buffer is full is dropped and its Overflow
// channel closed.
type Hub[T any] struct {
	buffer int

	mu   sync.RWMutex
	subs map[uuid.UUID]map[*Subscription[T]]struct{}
}

func NewHub[T any](buffer int) *Hub[T] {
	if buffer <= 0 {
		buffer = defaultSubscriptionBuffer
	}
	return &Hub[T]{
		buffer: buffer,
		subs:   make(map[uuid.UUID]map[*Subscription[T]]struct{}),
	}
}

type Subscription[T any] struct {
	C        <-chan T
	ch       chan T
	overflow chan struct{}
	topic    uuid.UUID
	hub      *Hub[T]
	once     sync.Once
}

// Overflow is closed if the subscriber fell behind and was dropped.
func (s *Subscription[T]) Overflow() <-chan struct{} { return s.overflow }

func (s *Subscription[T]) Close() {
	s.hub.remove(s)
}

func (h *Hub[T]) Subscribe(topic uuid.UUID) *Subscription[T] {
	ch := make(chan T, h.buffer)
	sub := &Subscription[T]{
		C:        ch,
		ch:       ch,
		overflow: make(chan struct{}),
		topic:    topic,
		hub:      h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[topic]
	if !ok {
		set = make(map[*Subscription[T]]struct{})
		h.subs[topic] = set
	}
	set[sub] = struct{}{}
	return sub
}

func (h *Hub[T]) Publish(topic uuid.UUID, msg T) {
	var dropped []*Subscription[T]

	h.mu.RLock()
	for sub := range h.subs[topic] {
		select {
		case sub.ch <- msg:
		default:
			dropped = append(dropped, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range dropped {
		sub.once.Do(func() { close(sub.overflow) })
		h.remove(sub)
	}
}

// Subscribers returns the number of subscriptions on topic.
func (h *Hub[T]) Subscribers(topic uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}

func (h *Hub[T]) remove(sub *Subscription[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[sub.topic]
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.topic)
	}
}
