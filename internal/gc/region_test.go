package gc

import "testing"

func TestInitRegions(t *testing.T) {
	ensureInit(t)

	t.Run("RegionsAreSelfAligned", func(t *testing.T) {
		for _, i := range []int{0, 1, BigIdxOffset, BigIdxOffset + 1, HugeIdxOffset, NumRegions - 1} {
			r := &regions[i]
			if r.startptr%r.size != 0 {
				t.Errorf("region %d: startptr %#x not a multiple of size %d", i, r.startptr, r.size)
			}
		}
	})

	t.Run("SizesIncreaseMonotonically", func(t *testing.T) {
		for i := 1; i < NumRegions; i++ {
			if regions[i].size < regions[i-1].size {
				t.Fatalf("region %d size %d < region %d size %d", i, regions[i].size, i-1, regions[i-1].size)
			}
		}
	})

	t.Run("FreeptrStartsAtStartptr", func(t *testing.T) {
		for _, i := range []int{0, BigIdxOffset, HugeIdxOffset} {
			if regions[i].freeptr != regions[i].startptr {
				t.Errorf("region %d: freeptr != startptr before any allocation", i)
			}
		}
	})

	t.Run("StartidxRoundTripsThroughObjidx", func(t *testing.T) {
		for _, i := range []int{0, BigIdxOffset, HugeIdxOffset} {
			r := &regions[i]
			if got := objidx(r.startptr, r.invSize); got != r.startidx {
				t.Errorf("region %d: objidx(startptr) = %d, want startidx %d", i, got, r.startidx)
			}
		}
	})
}
