package serve

import (
	"fmt"
	cmdUtil "github.com/ValentinKolb/dEcho/cmd/util"
	"github.com/ValentinKolb/dEcho/service/common"
	"github.com/ValentinKolb/dEcho/service/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"strconv"
)

var (
	serveCmdConfig = common.DefaultServerConfig()
	ServeCmd       = &cobra.Command{
		Use:   "serve [port]",
		Short: "Start the echo server",
		Long: `Start the echo server. Every byte a client sends is written back unchanged until the client closes the connection.

The configuration can be set via command line flags or environment variables. The format of the environment variables is DECHO_<flag> (e.g. DECHO_PORT=9000). A port given as argument takes precedence over --port.`,
		Args:         cobra.MaximumNArgs(1),
		PreRunE:      processConfig,
		RunE:         run,
		SilenceUsage: true,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "ip"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("IPv4 or IPv6 address to bind to. Empty or '*' binds to all interfaces"))

	key = "port"
	ServeCmd.PersistentFlags().Int(key, common.DefaultPort, cmdUtil.WrapString(fmt.Sprintf("Port to listen on (0 selects the default %d)", common.DefaultPort)))

	key = "backlog"
	ServeCmd.PersistentFlags().Int(key, common.DefaultBacklog, cmdUtil.WrapString("Listen backlog. Connection bursts beyond the backlog are refused by the OS"))

	key = "buffer-size"
	ServeCmd.PersistentFlags().Int(key, common.ReadBufferSize, cmdUtil.WrapString("Size of the per connection read buffer in bytes"))

	key = "echo-local"
	ServeCmd.PersistentFlags().BoolP(key, "e", false, cmdUtil.WrapString("Mirror all received bytes to stdout"))

	key = "sink-mode"
	ServeCmd.PersistentFlags().String(key, string(common.SinkModeSerialized), cmdUtil.WrapString("How bytes are mirrored to stdout (serialized, async). serialized writes synchronously under a lock, async hands the bytes to a single writer goroutine"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address to serve Prometheus metrics on under /metrics (e.g. localhost:9100). Disabled if empty"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, args []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.BindAddress = viper.GetString("ip")
	serveCmdConfig.Port = viper.GetInt("port")
	serveCmdConfig.Backlog = viper.GetInt("backlog")
	serveCmdConfig.ReadBufferSize = viper.GetInt("buffer-size")
	serveCmdConfig.EchoLocal = viper.GetBool("echo-local")
	serveCmdConfig.SinkMode = common.SinkMode(viper.GetString("sink-mode"))
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	// the port may also be given as positional argument
	if len(args) == 1 {
		port, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid port %s: %v", args[0], err)
		}
		serveCmdConfig.Port = port
	}

	if serveCmdConfig.Port == 0 {
		serveCmdConfig.Port = common.DefaultPort
	}

	return serveCmdConfig.Validate()
}

// run starts the echo server, it only returns on fatal errors
func run(_ *cobra.Command, _ []string) error {
	serv := server.NewEchoServer(serveCmdConfig, os.Stdout)
	return serv.Serve()
}
