package db

import (
	"errors"
	"fmt"

	"github.com/eapache/queue"
)

// ErrTableFull is returned by Insert when every slot is occupied.
var ErrTableFull = errors.New("slab: table full")

// Token identifies a slot. The low 32 bits are the slot index, the high 32
// bits the generation the slot had when the value was inserted.
type Token uint64

// NewToken packs index and generation into a Token.
func NewToken(index, gen uint32) Token {
	return Token(uint64(gen)<<32 | uint64(index))
}

func (t Token) Index() uint32 {
	return uint32(t)
}

func (t Token) Gen() uint32 {
	return uint32(t >> 32)
}

func (t Token) String() string {
	return fmt.Sprintf("%d.%d", t.Index(), t.Gen())
}

type slot[T any] struct {
	value T
	gen   uint32
	used  bool
}

// Slab is a bounded arena mapping tokens to values. Index 0 is never handed
// out so callers can reserve it for themselves.
type Slab[T any] struct {
	slots    []slot[T]
	free     *queue.Queue // freed indexes, reused oldest first
	capacity int
	size     int
}

// NewSlab returns a slab that holds at most capacity values.
func NewSlab[T any](capacity int) *Slab[T] {
	return &Slab[T]{
		// slot 0 is reserved
		slots:    make([]slot[T], 1, 1+min(capacity, 64)),
		free:     queue.New(),
		capacity: capacity,
	}
}

// Insert stores v in a free slot and returns its token.
func (s *Slab[T]) Insert(v T) (Token, error) {
	if s.size >= s.capacity {
		return 0, ErrTableFull
	}

	var idx int
	if s.free.Length() > 0 {
		idx = s.free.Remove().(int)
	} else {
		idx = len(s.slots)
		s.slots = append(s.slots, slot[T]{})
	}

	sl := &s.slots[idx]
	sl.value = v
	sl.used = true
	s.size++
	return NewToken(uint32(idx), sl.gen), nil
}

// Contains reports whether tok refers to a live slot.
func (s *Slab[T]) Contains(tok Token) bool {
	idx := int(tok.Index())
	if idx == 0 || idx >= len(s.slots) {
		return false
	}
	sl := &s.slots[idx]
	return sl.used && sl.gen == tok.Gen()
}

// Get returns the value stored under tok. A stale or unknown token is a
// programming error and panics.
func (s *Slab[T]) Get(tok Token) T {
	if !s.Contains(tok) {
		panic(fmt.Sprintf("slab: invalid token %s", tok))
	}
	return s.slots[tok.Index()].value
}

// Remove frees the slot held by tok and returns its value. The slot's
// generation is bumped so tok can never match a later occupant.
func (s *Slab[T]) Remove(tok Token) T {
	if !s.Contains(tok) {
		panic(fmt.Sprintf("slab: remove of invalid token %s", tok))
	}

	idx := int(tok.Index())
	sl := &s.slots[idx]
	v := sl.value

	var zero T
	sl.value = zero
	sl.used = false
	sl.gen++
	s.size--
	s.free.Add(idx)
	return v
}

// Each calls fn for every live slot in index order.
func (s *Slab[T]) Each(fn func(tok Token, v T)) {
	for i := 1; i < len(s.slots); i++ {
		sl := &s.slots[i]
		if sl.used {
			fn(NewToken(uint32(i), sl.gen), sl.value)
		}
	}
}

func (s *Slab[T]) Len() int {
	return s.size
}

func (s *Slab[T]) Cap() int {
	return s.capacity
}
