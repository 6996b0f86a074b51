package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	BuildBranch  string
	BuildVersion string
	BuildTime    string
	Builder      string
)

var labelColor = color.New(color.FgCyan).SprintfFunc()

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "show version",
	Long:  ``,
	Run: func(*cobra.Command, []string) {
		printVersion()
	},
}

func printVersion() {
	fmt.Printf("%s %s\n", labelColor("%-16s", "BuildBranch"), BuildBranch)
	fmt.Printf("%s %s\n", labelColor("%-16s", "BuildVersion"), BuildVersion)
	fmt.Printf("%s %s\n", labelColor("%-16s", "BuildTime"), BuildTime)
	fmt.Printf("%s %s\n", labelColor("%-16s", "Builder"), Builder)
}
