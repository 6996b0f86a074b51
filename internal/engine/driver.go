// Package engine drives execution states through the interpreter, the hook
// layer and the heap shadow.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"

	"kcore/internal/breadcrumb"
	"kcore/internal/crosscheck"
	"kcore/internal/heap"
	"kcore/internal/hook"
	"kcore/internal/issue"
	"kcore/internal/smt"
	"kcore/internal/state"
	"kcore/internal/strategy"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// hookArgs is how many integer arguments hooked functions may read.
const hookArgs = 3

var ErrRegisterMismatch = errors.New("register log mismatch")

// PathCounter hands out the sequential artifact index of completed paths.
type PathCounter struct {
	n int64
}

func (c *PathCounter) Next() int {
	return int(atomic.AddInt64(&c.n, 1))
}

func (c *PathCounter) Count() int {
	return int(atomic.LoadInt64(&c.n))
}

type Options struct {
	Hooks *hook.Manager
	// Syscalls resolves syscalls while recording. Ignored when Replay is set.
	Syscalls SyscallModel
	// Replay forces the run down the single path a log recorded: its syscall
	// results and, wherever the path forked, the successor it followed.
	Replay *breadcrumb.Replayer
	// CheckLeaks reports live allocations of exiting states.
	CheckLeaks bool
	// OutputDir receives crumbs and reports; empty disables persistence.
	OutputDir string
	// RegLogInterval logs a register dump every that many steps of a state.
	RegLogInterval uint64
	MaxSteps       int
	Paths          *PathCounter
}

type Stats struct {
	Steps      int
	Hooked     int
	Forks      int
	Completed  int
	Violations int
	Dropped    int
	// Pruned counts successors a replay cut off because the log followed another.
	Pruned int
}

type Driver struct {
	interp Interpreter
	sched  strategy.Strategy
	opts   Options

	// bypass holds states that must run the hooked function at an address natively.
	bypass map[uint64]uint64
	issues []*issue.Issue
	stats  Stats
}

func NewDriver(interp Interpreter, sched strategy.Strategy, opts Options) *Driver {
	if opts.Paths == nil {
		opts.Paths = &PathCounter{}
	}
	return &Driver{
		interp: interp,
		sched:  sched,
		opts:   opts,
		bypass: make(map[uint64]uint64),
	}
}

func (d *Driver) Issues() []*issue.Issue {
	return d.issues
}

func (d *Driver) Stats() Stats {
	return d.stats
}

// Run explores from roots until no live state is left.
func (d *Driver) Run(ctx context.Context, roots ...*state.State) error {
	log.Infof("Entering driver with %d states", len(roots))
	defer func() {
		log.Infof("Exiting driver: %d steps, %d paths, %d issues", d.stats.Steps, d.stats.Completed+d.stats.Violations, len(d.issues))
	}()

	if d.opts.Replay != nil && len(roots) != 1 {
		return errors.Errorf("replay follows one path, got %d roots", len(roots))
	}
	if err := d.sched.Push(roots...); err != nil {
		return errors.Wrap(err, "push roots")
	}
	for d.sched.HasNext() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.opts.MaxSteps > 0 && d.stats.Steps >= d.opts.MaxSteps {
			log.Infof("step budget of %d exhausted with %d states left", d.opts.MaxSteps, d.sched.Size())
			break
		}
		st, err := d.sched.Pop()
		if err != nil {
			return errors.Wrap(err, "pop")
		}
		next, err := d.execute(ctx, st)
		if err != nil {
			log.Errorf("execute %s: %v", st, err)
			return errors.Wrapf(err, "execute %s", st)
		}
		if err := d.sched.Push(next...); err != nil {
			return errors.Wrap(err, "push successors")
		}
	}
	return nil
}

func (d *Driver) execute(ctx context.Context, st *state.State) ([]*state.State, error) {
	addr, ok := d.interp.CurrentAddress(st)
	if ok && d.opts.Hooks != nil {
		if at, bypassed := d.bypass[st.ID]; bypassed && at == addr {
			delete(d.bypass, st.ID)
		} else if name, hooked := d.opts.Hooks.Lookup(addr); hooked {
			next, handled, err := d.callHook(ctx, st, addr, name)
			if err != nil || handled {
				return next, err
			}
		}
	}
	return d.step(ctx, st)
}

func (d *Driver) callHook(ctx context.Context, st *state.State, addr uint64, name string) ([]*state.State, bool, error) {
	args, err := d.interp.Arguments(st, hookArgs)
	if err != nil {
		log.Errorf("arguments of %s on %s: %v", name, st, err)
		d.drop(st, errors.Wrapf(err, "arguments of %s", name).Error())
		return nil, true, nil
	}
	res, err := d.opts.Hooks.Split(ctx, st, name, args)
	if errors.Is(err, smt.ErrBudgetExceeded) {
		log.Debugf("%s: %s too hard to split, emulating", st, name)
		return nil, false, nil
	} else if err != nil {
		if ctx.Err() != nil {
			return nil, true, ctx.Err()
		}
		log.Errorf("split %s on %s: %v", name, st, err)
		d.drop(st, err.Error())
		return nil, true, nil
	}
	if res.FallThrough {
		return nil, false, nil
	}
	d.stats.Hooked++
	if len(res.Successors) == 0 {
		d.drop(st, fmt.Sprintf("%s: no feasible case", name))
		return nil, true, nil
	}
	d.stats.Forks += len(res.Successors) - 1

	states := make([]*state.State, len(res.Successors))
	for i, succ := range res.Successors {
		states[i] = succ.State
	}
	kept, err := d.branch(states)
	if err != nil {
		return nil, true, err
	}
	next := make([]*state.State, 0, len(kept))
	for _, i := range kept {
		succ := res.Successors[i]
		if succ.Case.Emulate {
			d.bypass[succ.State.ID] = addr
		} else if err := d.interp.Return(succ.State, succ.Case.Ret); err != nil {
			log.Errorf("return from %s on %s: %v", name, succ.State, err)
			d.drop(succ.State, errors.Wrapf(err, "return from %s", name).Error())
			continue
		}
		next = append(next, succ.State)
	}
	return next, true, nil
}

// branch settles a fork into succs, where succs[0] continues the forking
// path, and returns the indexes of the successors to explore. Recording tags
// every successor with its index; a replay keeps only the one its log took.
func (d *Driver) branch(succs []*state.State) ([]int, error) {
	n := uint32(len(succs))
	switch n {
	case 0:
		return nil, nil
	case 1:
		return []int{0}, nil
	}
	if d.opts.Replay == nil {
		kept := make([]int, n)
		for i, s := range succs {
			s.Crumbs.Append(breadcrumb.Branch{Index: uint32(i), Count: n}.Frame())
			kept[i] = i
		}
		return kept, nil
	}

	idx, err := d.opts.Replay.NextBranch(n)
	if err != nil {
		return nil, errors.Wrapf(err, "replay branch on %s", succs[0])
	}
	for i, s := range succs {
		if uint32(i) == idx {
			continue
		}
		delete(d.bypass, s.ID)
		if d.sched.Retire(s, "branch not taken by replayed path") {
			d.stats.Pruned++
		}
	}
	succs[idx].Crumbs.Append(breadcrumb.Branch{Index: idx, Count: n}.Frame())
	return []int{int(idx)}, nil
}

func (d *Driver) step(ctx context.Context, st *state.State) ([]*state.State, error) {
	out, err := d.interp.Step(ctx, st)
	d.stats.Steps++
	st.Steps++
	if err != nil {
		log.Errorf("step %s: %v", st, err)
		d.drop(st, err.Error())
		return nil, nil
	}
	d.stats.Forks += len(out.Forks)
	var next []*state.State
	if len(out.Forks) > 0 {
		kept, err := d.branch(append([]*state.State{st}, out.Forks...))
		if err != nil {
			return nil, err
		}
		if kept[0] != 0 {
			// the replayed path left st for one of its forks
			return []*state.State{out.Forks[kept[0]-1]}, nil
		}
		for _, i := range kept[1:] {
			next = append(next, out.Forks[i-1])
		}
	}

	if v := applyEvents(st.Heap, out.Events); v != nil {
		d.fail(st, v.Error())
		return next, nil
	}

	switch out.Kind {
	case Normal:
		if err := d.logRegisters(st); err != nil {
			return nil, err
		}
		return append([]*state.State{st}, next...), nil
	case Fault:
		d.fail(st, out.Message)
	case SyscallPending:
		live, err := d.syscall(ctx, st, out.Syscall)
		if err != nil {
			return nil, err
		}
		if live {
			next = append([]*state.State{st}, next...)
		}
	case Exit:
		d.exit(st, out.ExitCode)
	default:
		return nil, errors.Errorf("unknown outcome %s", out.Kind)
	}
	return next, nil
}

func applyEvents(shadow *heap.Shadow, events []Event) *heap.Violation {
	for _, ev := range events {
		var v *heap.Violation
		switch ev.Kind {
		case EventAlloc:
			v = shadow.OnAlloc(ev.Addr, ev.Len)
		case EventAllocZeroed:
			v = shadow.OnAllocZeroed(ev.Addr, ev.Len)
		case EventFree:
			v = shadow.OnFree(ev.Addr)
		case EventAccess:
			v = shadow.OnAccess(ev.Addr, ev.Len, ev.Write)
		}
		if v != nil {
			return v
		}
	}
	return nil
}

func (d *Driver) logRegisters(st *state.State) error {
	if d.opts.RegLogInterval == 0 || st.Steps%d.opts.RegLogInterval != 0 {
		return nil
	}
	dumper, ok := d.interp.(RegisterDumper)
	if !ok {
		return nil
	}
	regs := dumper.DumpRegisters(st)
	if d.opts.Replay != nil {
		want, err := d.opts.Replay.NextRegs()
		if err != nil {
			return errors.Wrapf(err, "register log of %s", st)
		}
		if m := crosscheck.Compare(want, regs); m != nil {
			return errors.Wrapf(ErrRegisterMismatch, "%s after %d steps: %s", st, st.Steps, m)
		}
	}
	st.Crumbs.Append(breadcrumb.NewRegDump(regs).Frame(breadcrumb.TypeRegs))
	return nil
}

// fail retires st with a classified report.
func (d *Driver) fail(st *state.State, msg string) {
	if !d.sched.Retire(st, msg) {
		return
	}
	is := issue.New(st, msg)
	d.stats.Violations++
	d.persist(st, is)
	d.issues = append(d.issues, is)
	log.Infof("%s: %s (%s)", st, msg, is.CWE)
}

// drop retires st without a report.
func (d *Driver) drop(st *state.State, reason string) {
	if d.sched.Retire(st, reason) {
		d.stats.Dropped++
		log.Debugf("%s dropped: %s", st, reason)
	}
}

func (d *Driver) exit(st *state.State, code int) {
	if !d.sched.Retire(st, fmt.Sprintf("exit(%d)", code)) {
		return
	}
	d.stats.Completed++
	if d.opts.CheckLeaks {
		for _, v := range st.Heap.Leaks() {
			is := issue.New(st, v.Error())
			d.issues = append(d.issues, is)
			log.Infof("%s: %s", st, v)
		}
	}
	d.persist(st, nil)
	log.Debugf("%s exited with %d after %d steps", st, code, st.Steps)
}

func (d *Driver) persist(st *state.State, is *issue.Issue) {
	index := d.opts.Paths.Next()
	if d.opts.OutputDir == "" {
		return
	}
	path, err := st.Crumbs.Save(d.opts.OutputDir, index)
	if err != nil {
		log.Errorf("save crumbs of %s: %v", st, err)
		return
	}
	if is == nil {
		return
	}
	is.Crumbs = path
	if _, err := is.Save(d.opts.OutputDir, index); err != nil {
		log.Errorf("save report of %s: %v", st, err)
	}
}
