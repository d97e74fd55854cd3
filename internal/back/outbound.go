package back

import (
	"log/slog"
	"sync"

	"github.com/davidmehren/workadventure/internal/buffer"
	"github.com/davidmehren/workadventure/internal/messages"
)

const (
	outboundInitialCapacity = 16
	outboundMaxBatch        = 64
)

// outbound drains a queue onto one stream from its own goroutine.
type outbound[T any] struct {
	queue  *buffer.Queue[*T]
	send   func(*T) error
	logger *slog.Logger

	closeOnce sync.Once
	// closed is signaled by Close, so the handler owning the stream can
	// return.
	closed chan struct{}
	// done is closed when the writer goroutine exits.
	done chan struct{}
}

func newOutbound[T any](send func(*T) error, logger *slog.Logger) *outbound[T] {
	o := &outbound[T]{
		queue:  buffer.NewQueue[*T](outboundInitialCapacity),
		send:   send,
		logger: logger,
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go o.writeLoop()
	return o
}

func (o *outbound[T]) writeLoop() {
	defer close(o.done)
	failed := false
	for {
		items := o.queue.PopAll(outboundMaxBatch)
		if items == nil {
			return
		}
		if failed {
			continue
		}
		for _, item := range items {
			if err := o.send(item); err != nil {
				o.logger.Debug("stream write failed", "error", err)
				failed = true
				o.Close()
				break
			}
		}
	}
}

func (o *outbound[T]) push(msg *T) {
	o.queue.Push(msg)
}

// Close stops accepting messages. Already queued messages are still
// written.
func (o *outbound[T]) Close() {
	o.closeOnce.Do(func() {
		o.queue.Close()
		close(o.closed)
	})
}

// wait blocks until every queued message has been written or dropped.
func (o *outbound[T]) wait() { <-o.done }

// userConn is the outbound side of a join stream.
type userConn struct {
	*outbound[messages.ServerMessage]
}

func (c userConn) Send(msg *messages.ServerMessage) { c.push(msg) }

// zoneListener is one ListenZone stream. It is shared by every session of
// the gateway that opened it, so it has no owner.
type zoneListener struct {
	*outbound[messages.ZoneBatch]
}

func (*zoneListener) OwnerUserID() int32 { return 0 }

func (l *zoneListener) emit(events ...*messages.ZoneEvent) {
	l.push(&messages.ZoneBatch{Events: events})
}

// adminConn is one AdminRoom stream.
type adminConn struct {
	*outbound[messages.ServerToAdmin]
}

func (c *adminConn) SendAdmin(msg *messages.ServerToAdmin) { c.push(msg) }
