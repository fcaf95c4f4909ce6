package channel

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

var _ Channel[int] = (*Latest[int])(nil)

func TestLatest_KeepsNewest(t *testing.T) {
	l := NewLatest[int]()
	assert.Equal(t, 0, l.Len())

	l.Send(1)
	l.Send(2)
	l.Send(3)

	assert.Equal(t, 1, l.Len())
	assert.Equal(t, 2, l.Replaced())
	assert.Equal(t, 3, <-l.Receive())
	assert.Equal(t, 0, l.Len())
}

func TestLatest_SendAfterReceive(t *testing.T) {
	l := NewLatest[string]()
	l.Send("turn 4")
	assert.Equal(t, "turn 4", <-l.Receive())

	l.Send("turn 5")
	assert.Equal(t, "turn 5", <-l.Receive())
	assert.Equal(t, 0, l.Replaced())
}

func TestLatest_ConcurrentSendersNeverBlock(t *testing.T) {
	l := NewLatest[int]()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Send(i)
		}()
	}
	wg.Wait()

	if l.Len() != 1 {
		t.Errorf("expected one pending value, got %d", l.Len())
	}
	assert.Equal(t, 49, l.Replaced())
}
