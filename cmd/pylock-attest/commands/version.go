package commands

import (
	"fmt"

	"github.com/pylock/attest/version"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the pylock-attest version",
		Run: func(_ *cobra.Command, _ []string) {
			v, err := version.Get()
			if err != nil || v == nil {
				fmt.Println("pylock-attest version unknown")
				return
			}
			fmt.Printf("pylock-attest version %s\n", v)
		},
	}
}
