package cache

import (
	"testing"
)

// Fuzz a small cache with an op stream decoded from bytes and check the
// structural invariants after every step.
func FuzzLRU_Ops(f *testing.F) {
	f.Add([]byte{0, 1, 2, 3, 4, 5, 6, 7})
	f.Add([]byte{9, 9, 9, 1, 1, 1})
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, ops []byte) {
		c, err := New[byte, byte](3)
		if err != nil {
			t.Fatal(err)
		}
		for _, op := range ops {
			k := op & 0x0f
			switch op >> 6 {
			case 0, 1:
				c.Put(k, op)
				if v, ok := c.Peek(k); !ok || v != op {
					t.Fatalf("put %d then peek: got %d ok=%v", k, v, ok)
				}
			case 2:
				c.Get(k)
			case 3:
				c.Remove(k)
				if _, ok := c.Peek(k); ok {
					t.Fatalf("key %d present after remove", k)
				}
			}
			checkInvariants(t, c)
		}
	})
}
