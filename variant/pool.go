package variant

import "github.com/delaneyj/toolbelt"

var (
	indexPool  = toolbelt.New(func() []int64 { return make([]int64, 0, 8) })
	stridePool = toolbelt.New(func() []uint64 { return make([]uint64, 0, 8) })
)

func getIndexSlice(n int) []int64 {
	s := indexPool.Get()
	if cap(s) < n {
		return make([]int64, n)
	}
	return s[:n]
}

func putIndexSlice(s []int64) {
	indexPool.Put(s[:0])
}

func getStrideSlice(n int) []uint64 {
	s := stridePool.Get()
	if cap(s) < n {
		return make([]uint64, n)
	}
	return s[:n]
}

func putStrideSlice(s []uint64) {
	stridePool.Put(s[:0])
}
