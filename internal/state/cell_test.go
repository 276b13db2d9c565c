package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCell_GetSet(t *testing.T) {
	c := NewCell[*string](nil)
	assert.Nil(t, c.Get())

	v := "ada"
	c.Set(&v)
	require.NotNil(t, c.Get())
	assert.Equal(t, "ada", *c.Get())
}

func TestCell_NotifiesInOrder(t *testing.T) {
	c := NewCell(0)
	var got []string

	c.Subscribe(func(v int) { got = append(got, "a") })
	c.Subscribe(func(v int) { got = append(got, "b") })

	c.Set(1)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestCell_NoReplayOnSubscribe(t *testing.T) {
	c := NewCell(5)
	calls := 0
	c.Subscribe(func(int) { calls++ })
	assert.Zero(t, calls)
}

func TestCell_Unsubscribe(t *testing.T) {
	c := NewCell(0)
	var a, b int

	unsubA := c.Subscribe(func(v int) { a = v })
	c.Subscribe(func(v int) { b = v })

	c.Set(1)
	unsubA()
	unsubA()
	c.Set(2)

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
	assert.Equal(t, 1, c.Subscribers())
}

func TestCell_ListenerCanReadAndUnsubscribe(t *testing.T) {
	c := NewCell(0)
	var seen int
	var unsub func()
	unsub = c.Subscribe(func(int) {
		seen = c.Get()
		unsub()
	})

	c.Set(3)
	c.Set(4)
	assert.Equal(t, 3, seen)
	assert.Zero(t, c.Subscribers())
}

func TestCell_ConcurrentSet(t *testing.T) {
	c := NewCell(0)
	var mu sync.Mutex
	count := 0
	c.Subscribe(func(int) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Set(i)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, count)
}
