package engine

import (
	"context"
	"fmt"

	"kcore/internal/breadcrumb"
	"kcore/internal/smt"
	"kcore/internal/state"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// syscall resolves a pending syscall and reports whether st stays live.
func (d *Driver) syscall(ctx context.Context, st *state.State, req SyscallRequest) (bool, error) {
	if d.opts.Replay != nil {
		rep, err := d.opts.Replay.NextSyscall(req.Nr)
		if err != nil {
			return false, errors.Wrapf(err, "replay syscall %d on %s", req.Nr, st)
		}
		if err := record(st.Crumbs, rep.Syscall, rep.Ops); err != nil {
			return false, err
		}
		return d.completeSyscall(st, req, rep)
	}

	if d.opts.Syscalls == nil {
		d.drop(st, fmt.Sprintf("unmodelled syscall %d", req.Nr))
		return false, nil
	}
	eff, err := d.opts.Syscalls.Syscall(ctx, st, req)
	if err != nil {
		d.drop(st, errors.Wrapf(err, "syscall %d", req.Nr).Error())
		return false, nil
	}
	sc := breadcrumb.Syscall{
		XlateNr: req.XlateNr,
		Nr:      req.Nr,
		Ret:     eff.Ret,
		Regs:    eff.Regs,
		Thunk:   eff.Thunk,
	}
	if err := record(st.Crumbs, sc, eff.Ops); err != nil {
		if errors.Is(err, breadcrumb.ErrOpBufferFull) {
			d.drop(st, err.Error())
			return false, nil
		}
		return false, err
	}
	rep := &breadcrumb.SyscallReplay{Syscall: sc}
	if !sc.Thunk {
		rep.Ops = eff.Ops
	}
	return d.completeSyscall(st, req, rep)
}

func record(l *breadcrumb.Log, sc breadcrumb.Syscall, ops []breadcrumb.MemOp) error {
	b := breadcrumb.NewSyscallBuilder(sc.XlateNr, sc.Nr)
	b.SetRet(sc.Ret)
	if sc.Regs != nil {
		b.SetRegs(sc.Regs)
	}
	if sc.Thunk {
		b.SetThunk()
	}
	for _, op := range ops {
		if err := b.AddOp(op); err != nil {
			return err
		}
	}
	return b.Commit(l)
}

func (d *Driver) completeSyscall(st *state.State, req SyscallRequest, rep *breadcrumb.SyscallReplay) (bool, error) {
	writes, err := rep.Writes(req.Args)
	if err != nil {
		d.drop(st, err.Error())
		return false, nil
	}
	for i, w := range writes {
		if v := st.Heap.OnAccess(w.Addr, uint64(w.Size), true); v != nil {
			d.fail(st, v.Error())
			return false, nil
		}
		if w.Data != nil {
			st.Memory.WriteConcrete(w.Addr, w.Data)
			continue
		}
		name := fmt.Sprintf("sys%d_%d_%d", rep.Nr, st.Crumbs.Len(), i)
		st.Memory.StoreBytes(w.Addr, smt.NewBytes(name, int(w.Size)))
		log.Debugf("%s: %d symbolic bytes at %#x from syscall %d", st, w.Size, w.Addr, rep.Nr)
	}
	res := SyscallResult{Nr: rep.Nr, Ret: rep.Ret, Regs: rep.Regs}
	if err := d.interp.CompleteSyscall(st, res); err != nil {
		log.Errorf("complete syscall %d on %s: %v", rep.Nr, st, err)
		d.drop(st, err.Error())
		return false, nil
	}
	return true, nil
}
