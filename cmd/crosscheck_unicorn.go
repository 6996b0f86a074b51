//go:build unicorn

package main

import (
	"fmt"
	"os"

	"kcore/internal/breadcrumb"
	"kcore/internal/crosscheck"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	imageFile string
	imageBase uint64
	entry     uint64
)

var crosscheckCommand = &cobra.Command{
	Use:   "crosscheck",
	Short: "replay a breadcrumb log on unicorn and compare register dumps",
	Long:  ``,
	RunE: func(*cobra.Command, []string) error {
		return crosscheckExec()
	},
}

func init() {
	crosscheckCommand.Flags().StringVar(&crumbsFile, "file", "", "breadcrumb log (.crumbs, .gz or .xz)")
	crosscheckCommand.Flags().StringVar(&imageFile, "image", "", "flat amd64 image")
	crosscheckCommand.Flags().Uint64Var(&imageBase, "base", 0x400000, "load address of the image")
	crosscheckCommand.Flags().Uint64Var(&entry, "entry", 0, "entry point (default is the load address)")
	_ = crosscheckCommand.MarkFlagRequired("file")
	_ = crosscheckCommand.MarkFlagRequired("image")
	rootCmd.AddCommand(crosscheckCommand)
}

func crosscheckExec() error {
	image, err := os.ReadFile(imageFile)
	if err != nil {
		return errors.Wrapf(err, "read %s", imageFile)
	}
	r, err := breadcrumb.Open(crumbsFile)
	if err != nil {
		return err
	}
	defer r.Close()

	if entry == 0 {
		entry = imageBase
	}
	rp := breadcrumb.NewReplayer(r)
	replay, err := crosscheck.NewReplay(rp, crosscheck.Options{
		Image:          image,
		Base:           imageBase,
		Entry:          entry,
		RegLogInterval: uint64(viper.GetInt("engine.reg-log-interval")),
	})
	if err != nil {
		return err
	}
	defer replay.Close()

	mismatch, err := replay.Run()
	if err != nil {
		return err
	}
	if mismatch != nil {
		return errors.Errorf("%s after %d steps", mismatch, replay.Steps())
	}
	fmt.Printf("%d steps, %d syscalls, %d register dumps agree\n", replay.Steps(), rp.Syscalls(), replay.Checked())
	return nil
}
