package main

import (
	"fmt"
	"io"

	"kcore/internal/breadcrumb"

	"github.com/davecgh/go-spew/spew"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	crumbsFile string
	rawDump    bool
)

var dumpCommand = &cobra.Command{
	Use:   "dump",
	Short: "print the records of a breadcrumb log",
	Long:  ``,
	RunE: func(*cobra.Command, []string) error {
		return dumpCrumbs(crumbsFile, rawDump)
	},
}

func init() {
	dumpCommand.Flags().StringVar(&crumbsFile, "file", "", "breadcrumb log (.crumbs, .gz or .xz)")
	dumpCommand.Flags().BoolVar(&rawDump, "raw", false, "dump frames with their raw payload")
	_ = dumpCommand.MarkFlagRequired("file")
}

func describe(f breadcrumb.Frame) string {
	switch f.Type {
	case breadcrumb.TypeSyscall:
		sc, err := breadcrumb.ParseSyscall(f)
		if err != nil {
			return err.Error()
		}
		s := fmt.Sprintf("nr=%d xlate=%d ret=%#x ops=%d", sc.Nr, sc.XlateNr, sc.Ret, sc.OpCount)
		if sc.Thunk {
			s += " thunk"
		}
		if sc.Regs != nil {
			s += fmt.Sprintf(" new-regs=%d", len(sc.Regs))
		}
		return s
	case breadcrumb.TypeSyscallOp:
		op, err := breadcrumb.ParseMemOp(f)
		if err != nil {
			return err.Error()
		}
		s := fmt.Sprintf("%s+%#x size=%d", op.Base, op.Offset, op.Size)
		if op.Data != nil {
			s += fmt.Sprintf(" data=%q", op.Data)
		}
		return s
	case breadcrumb.TypeRegs, breadcrumb.TypeStackLog:
		d, err := breadcrumb.ParseRegs(f)
		if err != nil {
			return err.Error()
		}
		concrete := 0
		for _, m := range d.Mask {
			if m == 0xff {
				concrete++
			}
		}
		return fmt.Sprintf("%d bytes, %d concrete", len(d.Regs), concrete)
	case breadcrumb.TypeBranch:
		b, err := breadcrumb.ParseBranch(f)
		if err != nil {
			return err.Error()
		}
		return fmt.Sprintf("took %d of %d", b.Index, b.Count)
	case breadcrumb.TypeMemLog:
		m, err := breadcrumb.ParseMemLog(f)
		if err != nil {
			return err.Error()
		}
		return fmt.Sprintf("base=%#x len=%d", m.Base, len(m.Data))
	}
	return ""
}

func dumpCrumbs(path string, raw bool) error {
	r, err := breadcrumb.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	var total uint64
	for {
		f, err := r.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return errors.Wrapf(err, "frame %d", r.Processed())
		}
		total += uint64(f.Size())
		if raw {
			spew.Dump(f)
			continue
		}
		fmt.Printf("%s %-10s flags=%#x %-8s %s\n",
			labelColor("%6d", r.Processed()-1), breadcrumb.TypeName(f.Type), f.Flags,
			humanize.Bytes(uint64(f.Size())), describe(f))
	}
	fmt.Printf("%d frames, %s of payload\n", r.Processed(), humanize.Bytes(total))
	return nil
}
