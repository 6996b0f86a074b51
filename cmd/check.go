package main

import (
	"fmt"
	"sort"

	"kcore/internal/breadcrumb"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var checkCommand = &cobra.Command{
	Use:   "check",
	Short: "validate a breadcrumb log the way a replay would consume it",
	Long:  ``,
	RunE: func(*cobra.Command, []string) error {
		return checkCrumbs(crumbsFile)
	},
}

func init() {
	checkCommand.Flags().StringVar(&crumbsFile, "file", "", "breadcrumb log (.crumbs, .gz or .xz)")
	_ = checkCommand.MarkFlagRequired("file")
}

func checkCrumbs(path string) error {
	r, err := breadcrumb.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	log.Infof("checking %s", path)
	rep, err := breadcrumb.Check(r)
	if err != nil {
		return err
	}

	types := make([]uint32, 0, len(rep.Types))
	for typ := range rep.Types {
		types = append(types, typ)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, typ := range types {
		fmt.Printf("%s %d\n", labelColor("%-16s", breadcrumb.TypeName(typ)), rep.Types[typ])
	}
	fmt.Printf("%d frames, %d syscalls (%d ops replayed, %d skipped), %d register dumps, %d branches, %s of payload\n",
		rep.Frames, rep.Syscalls, rep.Ops, rep.Thunked, rep.Regs, rep.Branches, humanize.Bytes(rep.Payload))
	return nil
}
