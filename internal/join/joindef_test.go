package join

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEmitToUnboundMoleculeReturnsErrNotBound(t *testing.T) {
	id := newMoleculeID("orphan", false)
	err := Emit(id, 1, nil)
	require.Error(t, err)
	var notBound *ErrNotBound
	require.ErrorAs(t, err, &notBound)
}

func TestActivateRejectsDoubleBinding(t *testing.T) {
	a := DeclareNonBlocking[int]("dup-a")
	b := DeclareNonBlocking[int]("dup-b")

	r1 := NewReaction(InputPattern{ID: a.ID(), Matcher: Wildcard{}}).Do(func(Bindings) {})
	jd1, _, err := Activate([]*ReactionDescriptor{r1})
	require.NoError(t, err)
	defer jd1.ShutdownNow()

	r2 := NewReaction(
		InputPattern{ID: a.ID(), Matcher: Wildcard{}},
		InputPattern{ID: b.ID(), Matcher: Wildcard{}},
	).Do(func(Bindings) {})
	_, _, err = Activate([]*ReactionDescriptor{r2})
	require.Error(t, err)
	var already *ErrAlreadyBound
	require.ErrorAs(t, err, &already)
}

// TestCounterFetchAndDecrement exercises a minimal stateful join: a
// non-blocking Counter(n) molecule and a blocking Fetch() request that
// replies with the current count and re-emits Counter(n) unchanged, plus a
// non-blocking Decr() that consumes Counter(n) and re-emits Counter(n-1).
func TestCounterFetchAndDecrement(t *testing.T) {
	counter := DeclareNonBlocking[int]("Counter")
	fetch := DeclareBlocking[struct{}, int]("Fetch")
	decr := DeclareNonBlocking[struct{}]("Decr")

	fetchReaction := NewReaction(
		InputPattern{ID: counter.ID(), Matcher: SimpleVar{}},
		InputPattern{ID: fetch.ID(), Matcher: ReplyBinder{}},
	).Named("Counter+Fetch").
		Emits(EmitVar(counter.ID())).
		Do(func(b Bindings) {
			n := b[0].(int)
			reply := b[1].(*ReplyHandle)
			reply.Reply(n)
			_ = counter.Emit(n)
		})

	decrReaction := NewReaction(
		InputPattern{ID: counter.ID(), Matcher: SimpleVar{}},
		InputPattern{ID: decr.ID(), Matcher: Wildcard{}},
	).Named("Counter+Decr").
		Emits(EmitVar(counter.ID())).
		Do(func(b Bindings) {
			n := b[0].(int)
			_ = counter.Emit(n - 1)
		})

	jd, wae, err := Activate([]*ReactionDescriptor{fetchReaction, decrReaction}, WithName("counter"))
	require.NoError(t, err)
	require.False(t, wae.HasErrors())
	defer jd.ShutdownNow()

	require.NoError(t, counter.Emit(10))

	v, timedOut, err := fetch.Emit(struct{}{}, time.Second)
	require.NoError(t, err)
	require.False(t, timedOut)
	require.Equal(t, 10, v)

	require.NoError(t, decr.Emit(struct{}{}))

	require.Eventually(t, func() bool {
		v, timedOut, err := fetch.Emit(struct{}{}, time.Second)
		return err == nil && !timedOut && v == 9
	}, time.Second, 5*time.Millisecond)
}

// TestMapReduceSumOfSquares exercises a fan-out/fan-in join computing the
// sum of squares of 1..100 (= 338350): a Task(n) molecule maps to a
// Partial(n*n) molecule, and an Accumulator(sum, remaining) reaction folds
// partials until remaining reaches zero, replying on a blocking Result().
func TestMapReduceSumOfSquares(t *testing.T) {
	const upperBound = 100
	const want = 338350

	task := DeclareNonBlocking[int]("Task")
	partial := DeclareNonBlocking[int]("Partial")
	acc := DeclareNonBlocking[[2]int]("Accumulator") // [sum, remaining]
	result := DeclareBlocking[struct{}, int]("Result")

	mapReaction := NewReaction(
		InputPattern{ID: task.ID(), Matcher: SimpleVar{}},
	).Named("square").
		Emits(EmitVar(partial.ID())).
		Do(func(b Bindings) {
			n := b[0].(int)
			_ = partial.Emit(n * n)
		})

	reduceReaction := NewReaction(
		InputPattern{ID: partial.ID(), Matcher: SimpleVar{}},
		InputPattern{ID: acc.ID(), Matcher: SimpleVar{}},
	).Named("accumulate").
		Emits(EmitVar(acc.ID())).
		Do(func(b Bindings) {
			p := b[0].(int)
			state := b[1].([2]int)
			_ = acc.Emit([2]int{state[0] + p, state[1] - 1})
		})

	resultReaction := NewReaction(
		InputPattern{ID: acc.ID(), Matcher: Arbitrary{Name: "done", Pred: func(v any) (any, bool) {
			s := v.([2]int)
			return s, s[1] == 0
		}}},
		InputPattern{ID: result.ID(), Matcher: ReplyBinder{}},
	).Named("finish").
		Do(func(b Bindings) {
			state := b[0].([2]int)
			reply := b[1].(*ReplyHandle)
			reply.Reply(state[0])
		})

	jd, wae, err := Activate([]*ReactionDescriptor{mapReaction, reduceReaction, resultReaction}, WithName("mapreduce"))
	require.NoError(t, err)
	require.False(t, wae.HasErrors())
	defer jd.ShutdownNow()

	require.NoError(t, acc.Emit([2]int{0, upperBound}))

	var wg sync.WaitGroup
	for i := 1; i <= upperBound; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			require.NoError(t, task.Emit(n))
		}(i)
	}
	wg.Wait()

	sum, timedOut, err := result.Emit(struct{}{}, 2*time.Second)
	require.NoError(t, err)
	require.False(t, timedOut)
	require.Equal(t, want, sum)
}
