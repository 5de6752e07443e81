package util

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gorient/gorient/client"
	"github.com/gorient/gorient/common"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
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

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupClientFlags adds the common server connection flags to a command
func SetupClientFlags(cmd *cobra.Command) {
	key := "host"
	cmd.PersistentFlags().String(key, common.DefaultHost, WrapString("Host name of the server"))

	key = "port"
	cmd.PersistentFlags().Int(key, common.DefaultPort, WrapString("Binary protocol port of the server"))

	key = "user"
	cmd.PersistentFlags().String(key, "root", WrapString("User name for authentication"))

	key = "password"
	cmd.PersistentFlags().String(key, "", WrapString("Password for authentication"))

	key = "serialization"
	cmd.PersistentFlags().String(key, common.DefaultSerialization, WrapString("Record serialization format (csv, binary)"))

	key = "strict-protocol"
	cmd.PersistentFlags().Bool(key, false, WrapString("Refuse to talk to servers speaking a newer protocol version"))

	key = "connect-timeout"
	cmd.PersistentFlags().Duration(key, common.DefaultConnectTimeout, WrapString("Timeout for dial and handshake"))

	key = "read-timeout"
	cmd.PersistentFlags().Duration(key, common.DefaultReadTimeout, WrapString("Per-poll read timeout on the socket"))

	key = "log-level"
	cmd.PersistentFlags().String(key, common.DefaultLogLevel, WrapString("Log level (debug, info, warn, error)"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("orient")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads the client configuration from viper
func GetClientConfig() common.ClientConfig {
	cfg := common.NewClientConfig()
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.Serialization = viper.GetString("serialization")
	cfg.StrictProtocol = viper.GetBool("strict-protocol")
	cfg.LogLevel = viper.GetString("log-level")
	if d := viper.GetDuration("connect-timeout"); d > 0 {
		cfg.ConnectTimeout = d
	}
	if d := viper.GetDuration("read-timeout"); d > 0 {
		cfg.ReadTimeout = d
	}
	return cfg
}

// GetCredentials reads the user/password pair from viper
func GetCredentials() (string, string) {
	return viper.GetString("user"), viper.GetString("password")
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// NewConnectedClient dials the configured server and authenticates at
// the server level (no database opened).
func NewConnectedClient() (*client.Client, error) {
	cfg := GetClientConfig()
	if err := common.InitLoggers(cfg.LogLevel); err != nil {
		return nil, err
	}

	c, err := client.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	user, password := GetCredentials()
	if err := c.Connect(user, password); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// NewOpenedClient dials the configured server and opens the named
// database on the session.
func NewOpenedClient(db string) (*client.Client, error) {
	cfg := GetClientConfig()
	if err := common.InitLoggers(cfg.LogLevel); err != nil {
		return nil, err
	}

	c, err := client.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	user, password := GetCredentials()
	if _, err := c.Open(db, user, password); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// FormatDuration renders a duration with millisecond precision for
// human-readable CLI output.
func FormatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
