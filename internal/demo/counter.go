// Package demo contains small self-contained join-calculus programs
// (counter, map/reduce, merge-sort) runnable from the joinrun CLI. Each
// program declares its own molecules and activates its own definition, so
// repeated runs never collide on the single-binding rule.
package demo

import (
	"fmt"
	"strings"
	"time"

	"github.com/kjoin/joinrun/internal/join"
)

// RunCounter builds the counter program: a Counter(n) state molecule, a
// Decr() molecule that decrements it, and a blocking Fetch() molecule that
// reads it. It emits Counter(initial), then decrements times Decr(), waits
// for the decrements to drain, and returns the fetched value.
func RunCounter(initial, decrements int) (int, error) {
	counter := join.DeclareNonBlocking[int]("counter")
	decr := join.DeclareNonBlocking[struct{}]("decr")
	fetch := join.DeclareBlocking[struct{}, int]("fetch")

	fetchReaction := join.NewReaction(
		join.InputPattern{ID: counter.ID(), Matcher: join.SimpleVar{}},
		join.InputPattern{ID: fetch.ID(), Matcher: join.ReplyBinder{}},
	).Named("counter+fetch").
		Emits(join.EmitVar(counter.ID())).
		Do(func(b join.Bindings) {
			n := b[0].(int)
			b[1].(*join.ReplyHandle).Reply(n)
			_ = counter.Emit(n)
		})

	decrReaction := join.NewReaction(
		join.InputPattern{ID: counter.ID(), Matcher: join.SimpleVar{}},
		join.InputPattern{ID: decr.ID(), Matcher: join.Wildcard{}},
	).Named("counter+decr").
		Emits(join.EmitVar(counter.ID())).
		Do(func(b join.Bindings) {
			_ = counter.Emit(b[0].(int) - 1)
		})

	jd, _, err := join.Activate(
		[]*join.ReactionDescriptor{fetchReaction, decrReaction},
		join.WithName("counter"))
	if err != nil {
		return 0, err
	}
	defer jd.ShutdownNow()

	if err := counter.Emit(initial); err != nil {
		return 0, err
	}
	for i := 0; i < decrements; i++ {
		if err := decr.Emit(struct{}{}); err != nil {
			return 0, err
		}
	}

	// Emissions land in the soup asynchronously, so wait until the soup
	// holds the fully decremented counter; that value appears only after
	// every decrement has been consumed.
	want := fmt.Sprintf("counter(%d)", initial-decrements)
	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(counter.LogSoup(), want) {
		if time.Now().After(deadline) {
			return 0, fmt.Errorf("decrements did not drain in time")
		}
		time.Sleep(2 * time.Millisecond)
	}

	v, timedOut, err := fetch.Emit(struct{}{}, 5*time.Second)
	if err != nil {
		return 0, err
	}
	if timedOut {
		return 0, fmt.Errorf("fetch timed out")
	}
	return v, nil
}
