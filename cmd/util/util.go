package util

import (
	"fmt"
	"github.com/ValentinKolb/dNotes/lib/store"
	"github.com/ValentinKolb/dNotes/rpc/client"
	"github.com/ValentinKolb/dNotes/rpc/common"
	"github.com/ValentinKolb/dNotes/rpc/serializer"
	"github.com/ValentinKolb/dNotes/rpc/transport"
	"github.com/ValentinKolb/dNotes/rpc/transport/http"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables (DNOTES_<FLAG>)
	EnvPrefix = "dnotes"
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

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads .env files and binds environment variables with the DNOTES_ prefix
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// --------------------------------------------------------------------------
// Store client
// --------------------------------------------------------------------------

// SetupStoreClientFlags adds the flags needed to reach a store served by "dnotes store serve"
func SetupStoreClientFlags(cmd *cobra.Command) {
	key := "store-endpoints"
	cmd.PersistentFlags().String(key, "http://localhost:8080", WrapString("The address of the store server. Multiple endpoints can be specified as a comma-separated list, requests are distributed round robin"))

	key = "store-shard"
	cmd.PersistentFlags().Uint64(key, 100, WrapString("ID of the shard holding the notes"))

	key = "store-transport"
	cmd.PersistentFlags().String(key, "http", WrapString("The transport used to reach the store (http)"))

	key = "store-timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of a single store request"))

	key = "store-retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many endpoints to try before a store request fails"))

	key = "store-conn-per-endpoint"
	cmd.PersistentFlags().Int(key, 1, WrapString("Simultaneous connections per endpoint"))
}

// GetClientConfig reads the store client configuration from viper
func GetClientConfig() common.ClientConfig {
	var endpoints []string
	for _, e := range strings.Split(viper.GetString("store-endpoints"), ",") {
		if e = strings.TrimSpace(e); e != "" {
			endpoints = append(endpoints, e)
		}
	}

	return common.ClientConfig{
		Endpoints:              endpoints,
		TimeoutSecond:          viper.GetInt("store-timeout"),
		RetryCount:             viper.GetInt("store-retries"),
		ConnectionsPerEndpoint: viper.GetInt("store-conn-per-endpoint"),
	}
}

// GetSerializer creates the serializer selected by the serializer flag
func GetSerializer() (serializer.IRPCSerializer, error) {
	return serializer.FromName(viper.GetString("serializer"))
}

// GetTransport creates the client transport selected by the store-transport flag
func GetTransport() (transport.IRPCClientTransport, error) {
	switch t := viper.GetString("store-transport"); t {
	case "http", "":
		return http.NewHttpClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s (expected http)", t)
	}
}

// NewStoreClient connects to the configured store shard
func NewStoreClient() (store.IStore, error) {
	config := GetClientConfig()
	if len(config.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one store endpoint is required")
	}

	s, err := GetSerializer()
	if err != nil {
		return nil, err
	}
	t, err := GetTransport()
	if err != nil {
		return nil, err
	}

	return client.NewRPCStore(viper.GetUint64("store-shard"), config, t, s)
}
