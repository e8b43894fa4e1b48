package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlabInsertGet(t *testing.T) {
	s := NewSlab[string](4)

	a, err := s.Insert("a")
	require.NoError(t, err)
	b, err := s.Insert("b")
	require.NoError(t, err)

	assert.NotEqual(t, uint32(0), a.Index(), "index 0 is reserved")
	assert.NotEqual(t, a, b)
	assert.Equal(t, "a", s.Get(a))
	assert.Equal(t, "b", s.Get(b))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 4, s.Cap())
}

func TestSlabFull(t *testing.T) {
	s := NewSlab[int](2)

	_, err := s.Insert(1)
	require.NoError(t, err)
	_, err = s.Insert(2)
	require.NoError(t, err)

	_, err = s.Insert(3)
	assert.ErrorIs(t, err, ErrTableFull)
	assert.Equal(t, 2, s.Len())
}

func TestSlabReuseAfterRemove(t *testing.T) {
	s := NewSlab[int](1)

	tok, err := s.Insert(1)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Remove(tok))
	assert.Equal(t, 0, s.Len())

	again, err := s.Insert(2)
	require.NoError(t, err)
	assert.Equal(t, tok.Index(), again.Index(), "freed index is reused")
	assert.NotEqual(t, tok.Gen(), again.Gen(), "generation is bumped on reuse")
	assert.Equal(t, 2, s.Get(again))
}

func TestSlabStaleToken(t *testing.T) {
	s := NewSlab[int](4)

	tok, _ := s.Insert(1)
	s.Remove(tok)
	_, _ = s.Insert(2)

	assert.False(t, s.Contains(tok))
	assert.Panics(t, func() { s.Get(tok) })
	assert.Panics(t, func() { s.Remove(tok) })
	assert.Panics(t, func() { s.Get(NewToken(0, 0)) })
	assert.Panics(t, func() { s.Get(NewToken(99, 0)) })
}

func TestSlabFreeListIsFIFO(t *testing.T) {
	s := NewSlab[int](3)

	t1, _ := s.Insert(1)
	t2, _ := s.Insert(2)
	_, _ = s.Insert(3)

	s.Remove(t2)
	s.Remove(t1)

	n1, _ := s.Insert(4)
	n2, _ := s.Insert(5)
	assert.Equal(t, t2.Index(), n1.Index())
	assert.Equal(t, t1.Index(), n2.Index())
}

func TestSlabEach(t *testing.T) {
	s := NewSlab[int](8)
	var want []Token
	for i := 0; i < 5; i++ {
		tok, _ := s.Insert(i)
		want = append(want, tok)
	}
	s.Remove(want[2])

	var got []Token
	sum := 0
	s.Each(func(tok Token, v int) {
		got = append(got, tok)
		sum += v
	})

	assert.Equal(t, []Token{want[0], want[1], want[3], want[4]}, got)
	assert.Equal(t, 0+1+3+4, sum)
}

func TestTokenPacking(t *testing.T) {
	tok := NewToken(7, 3)
	assert.Equal(t, uint32(7), tok.Index())
	assert.Equal(t, uint32(3), tok.Gen())
	assert.Equal(t, "7.3", tok.String())
}
