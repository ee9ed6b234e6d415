package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"postern/internal/server"
)

var commandVersion = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("postern", server.Version)
	},
}

func init() {
	mainCommand.AddCommand(commandVersion)
}
