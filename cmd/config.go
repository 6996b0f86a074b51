package main

import (
	"fmt"
	"sort"

	"kcore/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCommand = &cobra.Command{
	Use:   "config",
	Short: "validate and show the effective configuration",
	Long:  ``,
	RunE: func(*cobra.Command, []string) error {
		if _, err := config.Load(viper.GetViper()); err != nil {
			return err
		}
		keys := viper.AllKeys()
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Printf("%s %v\n", labelColor("%-28s", key), viper.Get(key))
		}
		return nil
	},
}
