package main

import (
	"fmt"
	"strings"

	"kcore/internal/cwe"

	"github.com/spf13/cobra"
)

var classifyCommand = &cobra.Command{
	Use:   "classify MESSAGE...",
	Short: "map an error message onto its CWE class",
	Long:  ``,
	Args:  cobra.MinimumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		msg := strings.Join(args, " ")
		code := cwe.Classify(msg)
		data := cwe.Lookup(code)
		if data == nil {
			fmt.Println(code)
			return
		}
		fmt.Printf("%s %s\n", labelColor("%s", code), data.Title)
		fmt.Println(data.Description)
	},
}
