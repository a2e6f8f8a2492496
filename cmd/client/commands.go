package client

import (
	"bytes"
	"fmt"
	"github.com/ValentinKolb/dEcho/cmd/util"
	echoclient "github.com/ValentinKolb/dEcho/service/client"
	"github.com/spf13/cobra"
	"strings"
)

var sendCmd = &cobra.Command{
	Use:   "send <message...>",
	Short: "Send a message and print the echo",
	Long:  "Send the arguments (joined by spaces) to the echo server and print what comes back.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := echoclient.NewEchoClient(*util.GetClientConfig())
		if err != nil {
			return err
		}
		defer c.Close()

		msg := []byte(strings.Join(args, " "))
		got, err := c.Echo(msg)
		if err != nil {
			return err
		}

		if !bytes.Equal(got, msg) {
			return fmt.Errorf("echo mismatch: sent %q, received %q", msg, got)
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(got))
		return nil
	},
}
