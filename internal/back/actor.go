package back

import (
	"sync"

	"github.com/davidmehren/workadventure/internal/room"
)

// actor serializes every access to one room.
type actor struct {
	room     *room.Room
	requests chan func()
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func newActor(r *room.Room) *actor {
	a := &actor{
		room:     r,
		requests: make(chan func()),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *actor) run() {
	defer close(a.done)
	for {
		select {
		case fn := <-a.requests:
			fn()
		case <-a.stop:
			return
		}
	}
}

// exec runs fn on the actor goroutine and waits for it to return. It fails
// with room.ErrRoomClosing once the actor has stopped.
func (a *actor) exec(fn func(r *room.Room)) error {
	finished := make(chan struct{})
	req := func() {
		defer close(finished)
		fn(a.room)
	}

	select {
	case a.requests <- req:
	case <-a.done:
		return room.ErrRoomClosing
	}
	<-finished
	return nil
}

// shutdown stops the actor after the request in flight, if any.
func (a *actor) shutdown() {
	a.stopOnce.Do(func() { close(a.stop) })
	<-a.done
}

// Done is closed once the actor has stopped.
func (a *actor) Done() <-chan struct{} { return a.done }
