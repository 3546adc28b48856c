package demo

import (
	"fmt"
	"time"

	"github.com/kjoin/joinrun/internal/join"
)

// RunSumOfSquares computes 1² + 2² + … + n² with a fan-out/fan-in join: a
// Task(i) molecule maps to a Partial(i*i) molecule, and an accumulator state
// molecule folds partials until every task has been counted, at which point
// a blocking Result() molecule reads the total.
func RunSumOfSquares(n int) (int, error) {
	task := join.DeclareNonBlocking[int]("task")
	partial := join.DeclareNonBlocking[int]("partial")
	acc := join.DeclareNonBlocking[[2]int]("acc") // [sum, remaining]
	result := join.DeclareBlocking[struct{}, int]("result")

	mapReaction := join.NewReaction(
		join.InputPattern{ID: task.ID(), Matcher: join.SimpleVar{}},
	).Named("square").
		Emits(join.EmitVar(partial.ID())).
		Do(func(b join.Bindings) {
			i := b[0].(int)
			_ = partial.Emit(i * i)
		})

	reduceReaction := join.NewReaction(
		join.InputPattern{ID: partial.ID(), Matcher: join.SimpleVar{}},
		join.InputPattern{ID: acc.ID(), Matcher: join.SimpleVar{}},
	).Named("accumulate").
		Emits(join.EmitVar(acc.ID())).
		Do(func(b join.Bindings) {
			p := b[0].(int)
			state := b[1].([2]int)
			_ = acc.Emit([2]int{state[0] + p, state[1] - 1})
		})

	resultReaction := join.NewReaction(
		join.InputPattern{ID: acc.ID(), Matcher: join.Arbitrary{
			Name: "all-tasks-counted",
			Pred: func(v any) (any, bool) {
				state := v.([2]int)
				return state, state[1] == 0
			},
		}},
		join.InputPattern{ID: result.ID(), Matcher: join.ReplyBinder{}},
	).Named("finish").
		Do(func(b join.Bindings) {
			state := b[0].([2]int)
			b[1].(*join.ReplyHandle).Reply(state[0])
		})

	jd, _, err := join.Activate(
		[]*join.ReactionDescriptor{mapReaction, reduceReaction, resultReaction},
		join.WithName("mapreduce"))
	if err != nil {
		return 0, err
	}
	defer jd.ShutdownNow()

	if err := acc.Emit([2]int{0, n}); err != nil {
		return 0, err
	}
	for i := 1; i <= n; i++ {
		if err := task.Emit(i); err != nil {
			return 0, err
		}
	}

	sum, timedOut, err := result.Emit(struct{}{}, 10*time.Second)
	if err != nil {
		return 0, err
	}
	if timedOut {
		return 0, fmt.Errorf("map/reduce did not converge in time")
	}
	return sum, nil
}
