package ir

import (
	"container/heap"
	"fmt"
)

// Executor carries out one instruction against backend state. For
// conditionals it evaluates the condition and reports which branch was
// taken; for every other variant BranchTaken is ignored.
type Executor interface {
	Execute(in *Instruction) (branchTaken bool, err error)
}

// Controller schedules the instructions of a phase in dependency order and
// drives an Executor through them. Scheduling is deterministic: among ready
// instructions the lowest id always runs first, so a program executes
// identically on every run.
type Controller struct {
	prog *Program
	exec Executor
}

// NewController returns a controller over prog backed by exec.
func NewController(prog *Program, exec Executor) *Controller {
	return &Controller{prog: prog, exec: exec}
}

// Run executes the phase to completion. The initial plan is the dependency
// closure of the phase goals; conditional branch bodies join the plan only
// when their condition selects them, and instructions depending on a
// conditional additionally wait for the selected branch to finish. Run
// returns ErrFailStep, a *Fault, or an execution error as soon as one
// occurs.
func (c *Controller) Run(phase *Phase) error {
	s := &schedule{
		prog:       c.prog,
		indeg:      make(map[InstrID]int),
		dependents: make(map[InstrID]map[InstrID]struct{}),
		inPlan:     make(map[InstrID]bool),
		done:       make(map[InstrID]bool),
	}
	s.add(c.prog.Closure(phase.Goals, false))

	for s.ready.Len() > 0 {
		id := heap.Pop(&s.ready).(InstrID)
		in := c.prog.At(id)

		branchTaken, err := c.exec.Execute(in)
		if err != nil {
			return err
		}
		s.done[id] = true

		if in.Op == OpCond {
			body := in.Then
			if !branchTaken {
				body = in.Else
			}
			s.expandBranch(id, body)
		}

		for dep := range s.dependents[id] {
			s.indeg[dep]--
			if s.indeg[dep] == 0 {
				heap.Push(&s.ready, dep)
			}
		}
	}

	for id, n := range s.indeg {
		if !s.done[id] && n > 0 {
			return fmt.Errorf("ir: dependency cycle involving instruction %d", id)
		}
	}
	return nil
}

type schedule struct {
	prog       *Program
	indeg      map[InstrID]int
	dependents map[InstrID]map[InstrID]struct{}
	inPlan     map[InstrID]bool
	done       map[InstrID]bool
	ready      idHeap
}

// add brings ids into the plan, wiring edges for their not-yet-done
// dependencies and marking dependency-free ones ready.
func (s *schedule) add(ids []InstrID) {
	for _, id := range ids {
		if s.inPlan[id] {
			continue
		}
		s.inPlan[id] = true
		n := 0
		for _, d := range s.prog.At(id).Deps {
			if s.done[d] {
				continue
			}
			s.edge(d, id)
			n++
		}
		s.indeg[id] = n
		if n == 0 {
			heap.Push(&s.ready, id)
		}
	}
}

func (s *schedule) edge(from, to InstrID) {
	m := s.dependents[from]
	if m == nil {
		m = make(map[InstrID]struct{})
		s.dependents[from] = m
	}
	m[to] = struct{}{}
}

// expandBranch schedules the selected branch body of an executed conditional
// and makes the conditional's unexecuted dependents wait for the whole body.
func (s *schedule) expandBranch(cond InstrID, body []InstrID) {
	s.add(s.prog.Closure(body, false))
	for dep := range s.dependents[cond] {
		if s.done[dep] {
			continue
		}
		for _, b := range body {
			if s.done[b] {
				continue
			}
			if _, dup := s.dependents[b][dep]; dup {
				continue
			}
			s.edge(b, dep)
			s.indeg[dep]++
		}
	}
}

type idHeap []InstrID

func (h idHeap) Len() int           { return len(h) }
func (h idHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x any)        { *h = append(*h, x.(InstrID)) }
func (h *idHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
