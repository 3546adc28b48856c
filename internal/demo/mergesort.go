package demo

import (
	"fmt"
	"sync"
	"time"

	"github.com/kjoin/joinrun/internal/join"
)

// MergeSort sorts xs by recursively splitting it and joining the two sorted
// halves in a merge reaction. Every recursion level declares fresh molecules
// and activates its own definition, so levels never share bindings.
func MergeSort(xs []int) ([]int, error) {
	if len(xs) <= 1 {
		out := make([]int, len(xs))
		copy(out, xs)
		return out, nil
	}

	left := join.DeclareNonBlocking[[]int]("sorted-left")
	right := join.DeclareNonBlocking[[]int]("sorted-right")
	merged := join.DeclareBlocking[struct{}, []int]("merged")

	mergeReaction := join.NewReaction(
		join.InputPattern{ID: left.ID(), Matcher: join.SimpleVar{}},
		join.InputPattern{ID: right.ID(), Matcher: join.SimpleVar{}},
		join.InputPattern{ID: merged.ID(), Matcher: join.ReplyBinder{}},
	).Named("merge").
		Do(func(b join.Bindings) {
			l := b[0].([]int)
			r := b[1].([]int)
			b[2].(*join.ReplyHandle).Reply(merge(l, r))
		})

	jd, _, err := join.Activate(
		[]*join.ReactionDescriptor{mergeReaction},
		join.WithName("mergesort"))
	if err != nil {
		return nil, err
	}
	defer jd.ShutdownNow()

	mid := len(xs) / 2
	var lhs, rhs []int
	var lerr, rerr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		lhs, lerr = MergeSort(xs[:mid])
	}()
	go func() {
		defer wg.Done()
		rhs, rerr = MergeSort(xs[mid:])
	}()
	wg.Wait()
	if lerr != nil {
		return nil, lerr
	}
	if rerr != nil {
		return nil, rerr
	}

	if err := left.Emit(lhs); err != nil {
		return nil, err
	}
	if err := right.Emit(rhs); err != nil {
		return nil, err
	}

	out, timedOut, err := merged.Emit(struct{}{}, 30*time.Second)
	if err != nil {
		return nil, err
	}
	if timedOut {
		return nil, fmt.Errorf("merge did not complete in time")
	}
	return out, nil
}

func merge(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}
