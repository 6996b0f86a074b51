//go:build unicorn

package crosscheck

import (
	"kcore/internal/breadcrumb"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"
)

const (
	pageSize  = 0x1000
	stackBase = 0x7ff000000000
	stackSize = 0x100000

	sysExit      = 60
	sysExitGroup = 231
)

var amd64Regs = map[string]int{
	"rax": uc.X86_REG_RAX, "rcx": uc.X86_REG_RCX, "rdx": uc.X86_REG_RDX, "rbx": uc.X86_REG_RBX,
	"rsp": uc.X86_REG_RSP, "rbp": uc.X86_REG_RBP, "rsi": uc.X86_REG_RSI, "rdi": uc.X86_REG_RDI,
	"r8": uc.X86_REG_R8, "r9": uc.X86_REG_R9, "r10": uc.X86_REG_R10, "r11": uc.X86_REG_R11,
	"r12": uc.X86_REG_R12, "r13": uc.X86_REG_R13, "r14": uc.X86_REG_R14, "r15": uc.X86_REG_R15,
	"rip": uc.X86_REG_RIP, "rflags": uc.X86_REG_EFLAGS, "fs_base": uc.X86_REG_FS_BASE, "gs_base": uc.X86_REG_GS_BASE,
}

var syscallArgs = []int{uc.X86_REG_RDI, uc.X86_REG_RSI, uc.X86_REG_RDX, uc.X86_REG_R10, uc.X86_REG_R8, uc.X86_REG_R9}

type Options struct {
	// Image is a flat amd64 image loaded at Base.
	Image []byte
	Base  uint64
	Entry uint64
	// RegLogInterval must match the interval the log was recorded with.
	RegLogInterval uint64
}

// Replay re-executes a recorded path on unicorn, feeding syscall results from
// the log and checking register dumps as they come up.
type Replay struct {
	mu   uc.Unicorn
	rp   *breadcrumb.Replayer
	opts Options

	steps    uint64
	checked  int
	mismatch *Mismatch
	err      error
}

func pageAlign(n uint64) uint64 {
	return (n + pageSize - 1) &^ (pageSize - 1)
}

func NewReplay(rp *breadcrumb.Replayer, opts Options) (*Replay, error) {
	mu, err := uc.NewUnicorn(uc.ARCH_X86, uc.MODE_64)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create unicorn instance")
	}
	r := &Replay{mu: mu, rp: rp, opts: opts}

	base := opts.Base &^ (pageSize - 1)
	if err := mu.MemMap(base, pageAlign(opts.Base+uint64(len(opts.Image))-base)); err != nil {
		return nil, errors.Wrapf(err, "failed to map image at %#x", base)
	}
	if err := mu.MemWrite(opts.Base, opts.Image); err != nil {
		return nil, errors.Wrap(err, "failed to write image")
	}
	if err := mu.MemMap(stackBase, stackSize); err != nil {
		return nil, errors.Wrap(err, "failed to map stack")
	}
	if err := mu.RegWrite(uc.X86_REG_RSP, stackBase+stackSize-pageSize); err != nil {
		return nil, errors.Wrap(err, "failed to set rsp")
	}

	if _, err := mu.HookAdd(uc.HOOK_INSN, func(mu uc.Unicorn) {
		r.syscall()
	}, 1, 0, uc.X86_INS_SYSCALL); err != nil {
		return nil, errors.Wrap(err, "failed to register syscall hook")
	}
	if opts.RegLogInterval > 0 {
		if _, err := mu.HookAdd(uc.HOOK_CODE, func(mu uc.Unicorn, addr uint64, size uint32) {
			if r.steps > 0 && r.steps%opts.RegLogInterval == 0 {
				r.checkRegisters()
			}
			r.steps++
		}, 1, 0); err != nil {
			return nil, errors.Wrap(err, "failed to register code hook")
		}
	}
	return r, nil
}

func (r *Replay) Close() error {
	return r.mu.Close()
}

// Run executes from the entry point until the program exits, the log diverges
// or a register dump mismatches.
func (r *Replay) Run() (*Mismatch, error) {
	if err := r.mu.Start(r.opts.Entry, 0); err != nil && r.err == nil {
		return nil, errors.Wrapf(err, "emulation stopped after %d steps", r.steps)
	}
	return r.mismatch, r.err
}

func (r *Replay) Steps() uint64 {
	return r.steps
}

// Checked counts register dumps compared so far.
func (r *Replay) Checked() int {
	return r.checked
}

func (r *Replay) fail(err error) {
	r.err = err
	r.mu.Stop()
}

func (r *Replay) dump() ([]byte, error) {
	regs := make([]byte, AMD64.Size())
	for _, reg := range AMD64 {
		v, err := r.mu.RegRead(amd64Regs[reg.Name])
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", reg.Name)
		}
		AMD64.Put(regs, reg.Name, v)
	}
	return regs, nil
}

func (r *Replay) load(regs []byte) error {
	for _, reg := range AMD64 {
		v, ok := AMD64.Get(regs, reg.Name)
		if !ok {
			continue
		}
		if err := r.mu.RegWrite(amd64Regs[reg.Name], v); err != nil {
			return errors.Wrapf(err, "write %s", reg.Name)
		}
	}
	return nil
}

func (r *Replay) checkRegisters() {
	want, err := r.rp.NextRegs()
	if err != nil {
		r.fail(errors.Wrapf(err, "register log after %d steps", r.steps))
		return
	}
	got, err := r.dump()
	if err != nil {
		r.fail(err)
		return
	}
	r.checked++
	if m := Compare(want, got); m != nil {
		log.Errorf("crosscheck: %s after %d steps", m, r.steps)
		r.mismatch = m
		r.mu.Stop()
	}
}

func (r *Replay) syscall() {
	nr, err := r.mu.RegRead(uc.X86_REG_RAX)
	if err != nil {
		r.fail(errors.Wrap(err, "read syscall number"))
		return
	}
	if nr == sysExit || nr == sysExitGroup {
		log.Infof("crosscheck: exit after %d steps, %d syscalls", r.steps, r.rp.Syscalls())
		r.mu.Stop()
		return
	}
	rep, err := r.rp.NextSyscall(uint32(nr))
	if err != nil {
		r.fail(err)
		return
	}
	args := make([]uint64, len(syscallArgs))
	for i, reg := range syscallArgs {
		if args[i], err = r.mu.RegRead(reg); err != nil {
			r.fail(errors.Wrapf(err, "read syscall arg %d", i))
			return
		}
	}
	writes, err := rep.Writes(args)
	if err != nil {
		r.fail(err)
		return
	}
	for _, w := range writes {
		if w.Data == nil {
			continue
		}
		if err := r.mu.MemWrite(w.Addr, w.Data); err != nil {
			r.fail(errors.Wrapf(err, "syscall %d write at %#x", nr, w.Addr))
			return
		}
	}
	if rep.Regs != nil {
		if err := r.load(rep.Regs); err != nil {
			r.fail(err)
			return
		}
	}
	if err := r.mu.RegWrite(uc.X86_REG_RAX, rep.Ret); err != nil {
		r.fail(errors.Wrap(err, "write syscall result"))
	}
	log.Debugf("crosscheck: syscall %d returned %#x", nr, rep.Ret)
}
