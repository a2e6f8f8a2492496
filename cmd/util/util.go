package util

import (
	"github.com/ValentinKolb/dEcho/service/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables (e.g. DECHO_PORT)
	EnvPrefix = "decho"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig makes viper read environment variables (DECHO_<FLAG>)
func InitConfig() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// SetupClientFlags adds the connection flags to a client command
func SetupClientFlags(cmd *cobra.Command) {
	key := "endpoint"
	cmd.PersistentFlags().String(key, "localhost:8001", WrapString("The address of the echo server"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of the client (0 disables the timeout)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "info", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// GetClientConfig reads the client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		Endpoint:      viper.GetString("endpoint"),
		TimeoutSecond: viper.GetInt("timeout"),
		LogLevel:      viper.GetString("log-level"),
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
