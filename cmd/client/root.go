package client

import (
	"github.com/ValentinKolb/dEcho/cmd/util"
	"github.com/ValentinKolb/dEcho/service/common"
	"github.com/spf13/cobra"
)

var (
	// ClientCommands represents the client command group
	ClientCommands = &cobra.Command{
		Use:               "client",
		Short:             "Talk to a running echo server",
		PersistentPreRunE: setupClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common connection flags to the client commands
	util.SetupClientFlags(ClientCommands)

	// Add subcommands
	ClientCommands.AddCommand(sendCmd)
	ClientCommands.AddCommand(perfTestCmd)
}

// setupClient binds the flags of the executed command to viper and installs the loggers
func setupClient(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	return common.InitLoggers(util.GetClientConfig().LogLevel)
}
