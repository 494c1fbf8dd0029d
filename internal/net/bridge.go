package net

import (
	"sync"

	"go.uber.org/zap"
)

// Conn is the transport half of a player connection. Implementations are
// provided by the outer server; the core only ever writes.
type Conn interface {
	Send(msg Message) error
	Close() error
}

// Bridge fans outbound messages to connected players. Messages are queued
// per player and flushed once per world tick so region traffic coalesces.
//
// Push and Flush run on the game loop; Register/Unregister may be called
// from accept goroutines, so the whole structure is mutex-guarded.
type Bridge struct {
	mu     sync.Mutex
	conns  map[int32]Conn
	queues map[int32][]Message
	log    *zap.Logger
}

func NewBridge(log *zap.Logger) *Bridge {
	return &Bridge{
		conns:  make(map[int32]Conn),
		queues: make(map[int32][]Message),
		log:    log,
	}
}

func (b *Bridge) Register(instance int32, c Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.conns[instance]; ok {
		old.Close()
	}
	b.conns[instance] = c
}

func (b *Bridge) Unregister(instance int32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conns, instance)
	delete(b.queues, instance)
}

// PushToPlayer queues a message for one player. Unknown instances are
// silently dropped; the player may have just disconnected.
func (b *Bridge) PushToPlayer(instance int32, msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.conns[instance]; !ok {
		return
	}
	b.queues[instance] = append(b.queues[instance], msg)
}

// PushBroadcast queues a message for every connected player.
func (b *Bridge) PushBroadcast(msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for instance := range b.conns {
		b.queues[instance] = append(b.queues[instance], msg)
	}
}

// Flush drains all player queues onto their connections. A send error
// closes the connection; the session layer notices on its next read.
func (b *Bridge) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for instance, queue := range b.queues {
		if len(queue) == 0 {
			continue
		}
		conn, ok := b.conns[instance]
		if !ok {
			b.queues[instance] = queue[:0]
			continue
		}
		for _, msg := range queue {
			if err := conn.Send(msg); err != nil {
				b.log.Warn("send failed, closing connection",
					zap.Int32("instance", instance), zap.Error(err))
				conn.Close()
				break
			}
		}
		b.queues[instance] = queue[:0]
	}
}
