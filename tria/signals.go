package tria

import (
	"iter"

	"github.com/google/uuid"
)

// Signal is an ordered list of observer callbacks of type F.
type Signal[F any] struct {
	slots []*slot[F]
}

type slot[F any] struct {
	fn        F
	connected bool
}

// Connection is returned by Connect and removes its observer.
type Connection struct {
	disconnect func()
}

// Disconnect removes the observer. Calling it twice is harmless.
func (c *Connection) Disconnect() {
	if c != nil && c.disconnect != nil {
		c.disconnect()
		c.disconnect = nil
	}
}

// Connect appends an observer; observers run in registration order
func (s *Signal[F]) Connect(fn F) *Connection {
	sl := &slot[F]{fn: fn, connected: true}
	s.slots = append(s.slots, sl)
	return &Connection{disconnect: func() {
		sl.connected = false
		for i, other := range s.slots {
			if other == sl {
				s.slots = append(s.slots[:i:i], s.slots[i+1:]...)
				return
			}
		}
	}}
}

// Slots yields the connected observers. Observers disconnected while the
// sequence is consumed are skipped.
func (s *Signal[F]) Slots() iter.Seq[F] {
	return func(yield func(F) bool) {
		snapshot := append([]*slot[F](nil), s.slots...)
		for _, sl := range snapshot {
			if !sl.connected {
				continue
			}
			if !yield(sl.fn) {
				return
			}
		}
	}
}

// NumSlots returns the number of connected observers
func (s *Signal[F]) NumSlots() int { return len(s.slots) }

// Signals are the observer channels of a Triangulation. Each fires only
// when the mesh is in a consistent state.
type Signals struct {
	Create         Signal[func()]
	PreRefinement  Signal[func()]
	PostRefinement Signal[func()]
	PrePartition   Signal[func()]
	MeshMovement   Signal[func()]
	Clear          Signal[func()]
	AnyChange      Signal[func()]

	PreCoarseningOnCell  Signal[func(Cell)]
	PostRefinementOnCell Signal[func(Cell)]

	// Copy fires on the destination of CopyTriangulation with the source
	Copy Signal[func(*Triangulation)]

	// CellWeight results are summed on top of a base weight per cell
	CellWeight Signal[func(Cell, CellStatus) uint]
}

func fire(s *Signal[func()]) {
	for fn := range s.Slots() {
		fn()
	}
}

// Subscription marks a live dependency on a Triangulation. While any is
// held, Clear and Load refuse to run.
type Subscription struct {
	ID   string
	Name string
	t    *Triangulation
}

// Subscribe registers a dependent object under a descriptive name
func (t *Triangulation) Subscribe(name string) *Subscription {
	s := &Subscription{ID: uuid.New().String(), Name: name, t: t}
	t.subscriptions[s.ID] = name
	return s
}

// Release drops the subscription
func (s *Subscription) Release() {
	if s.t != nil {
		delete(s.t.subscriptions, s.ID)
		s.t = nil
	}
}

// NSubscriptions returns the number of held subscriptions
func (t *Triangulation) NSubscriptions() int { return len(t.subscriptions) }
