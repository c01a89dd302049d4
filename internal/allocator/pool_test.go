package allocator

import (
	"testing"
	"unsafe"
)

func TestPool(t *testing.T) {
	t.Run("BasicAllocation", func(t *testing.T) {
		p := NewPool(32)

		ptr := p.Alloc()
		if ptr == nil {
			t.Fatal("allocation failed")
		}

		data := (*[32]byte)(ptr)
		for i := range data {
			data[i] = byte(i)
		}
		for i := range data {
			if data[i] != byte(i) {
				t.Errorf("data corruption at index %d", i)
			}
		}
	})

	t.Run("FreeListReuse", func(t *testing.T) {
		p := NewPool(16, WithChunkSize(16*4))

		first := p.Alloc()
		p.Free(first)
		second := p.Alloc()

		if first != second {
			t.Errorf("expected freed object to be reused, got %p want %p", second, first)
		}
	})

	t.Run("GrowsAcrossChunks", func(t *testing.T) {
		const chunkObjects = 4
		p := NewPool(16, WithChunkSize(16*chunkObjects))

		seen := make(map[unsafe.Pointer]bool)
		for i := 0; i < chunkObjects*3; i++ {
			ptr := p.Alloc()
			if ptr == nil {
				t.Fatalf("allocation %d failed", i)
			}
			if seen[ptr] {
				t.Fatalf("pool handed out duplicate pointer %p", ptr)
			}
			seen[ptr] = true
		}

		info := p.Info()
		if info.ChunkCount < 3 {
			t.Errorf("expected at least 3 chunks, got %d", info.ChunkCount)
		}
		if info.Allocated != chunkObjects*3 {
			t.Errorf("allocated = %d, want %d", info.Allocated, chunkObjects*3)
		}
	})

	t.Run("AlignmentIsRespected", func(t *testing.T) {
		p := NewPool(9, WithAlignment(16))
		if p.size != 16 {
			t.Errorf("size = %d, want 16", p.size)
		}
	})
}
