package cmd

import (
	"fmt"
	"github.com/ValentinKolb/dEcho/cmd/client"
	"github.com/ValentinKolb/dEcho/cmd/serve"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "decho",
		Short: "concurrent TCP echo server",
		Long: fmt.Sprintf(`dEcho (v%s)

A minimal concurrent TCP echo server written in Go. Every connection is
served by its own goroutine, every byte received is written back unchanged.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dEcho",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dEcho v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(client.ClientCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
// A failing command (e.g. a fatal listener error) exits the process with 1.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
