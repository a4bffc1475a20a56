package intern

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestInternReturnsSameBackingForRepeatedLabel(t *testing.T) {
	p := NewPool()
	a := p.Intern("reading")
	b := p.Intern(string([]byte("reading")))
	require.Equal(t, a, b)
	require.True(t, unsafe.StringData(a) == unsafe.StringData(b))
}

func TestInternConcurrentSafe(t *testing.T) {
	p := NewPool()
	var wg sync.WaitGroup
	labels := []string{"a", "b", "c", "d"}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		label := labels[i%len(labels)]
		go func() {
			defer wg.Done()
			p.Intern(label)
		}()
	}
	wg.Wait()
}

func TestIsPowerOfTwo(t *testing.T) {
	cases := map[uint32]bool{0: false, 1: true, 2: true, 3: false, 4: true, 6: false, 1024: true}
	for in, want := range cases {
		require.Equal(t, want, IsPowerOfTwo(in), "input %d", in)
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	cases := map[uint32]uint32{0: 1, 1: 1, 2: 2, 3: 4, 5: 8, 8: 8, 9: 16}
	for in, want := range cases {
		require.Equal(t, want, NextPowerOfTwo(in), "input %d", in)
	}
}
