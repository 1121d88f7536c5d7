package serve

import (
	"context"
	"fmt"
	cmdUtil "github.com/ValentinKolb/dNotes/cmd/util"
	"github.com/ValentinKolb/dNotes/lib/db"
	"github.com/ValentinKolb/dNotes/lib/db/engines/maple"
	"github.com/ValentinKolb/dNotes/lib/store"
	"github.com/ValentinKolb/dNotes/lib/store/lstore"
	"github.com/ValentinKolb/dNotes/notes/auth"
	"github.com/ValentinKolb/dNotes/notes/server"
	"github.com/ValentinKolb/dNotes/notes/session"
	"github.com/ValentinKolb/dNotes/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

var (
	serveConfig = server.Config{}

	// ServeCmd starts the notes server
	ServeCmd = &cobra.Command{
		Use:     "serve",
		Short:   "Start the notes server",
		Long:    `Start the WebSocket notes server. The configuration can be set via command line flags or environment variables. The format of the environment variables is DNOTES_<flag> (e.g. DNOTES_AUTH_MODE=static)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	cobra.OnInitialize(cmdUtil.InitConfig)

	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "127.0.0.1:5000", cmdUtil.WrapString("The address on which the notes server will listen"))

	key = "store"
	ServeCmd.PersistentFlags().String(key, "local", cmdUtil.WrapString("Where the notes are stored: local (in process) or rpc (a server started with 'dnotes store serve')"))

	key = "store-guard"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Serialize all store calls with a mutex, for stores that must not be used concurrently"))

	key = "auth-mode"
	ServeCmd.PersistentFlags().String(key, string(auth.ModeNone), cmdUtil.WrapString("How connections are authenticated: none, static (token query parameter) or user (username query parameter and __Host.__ws cookie)"))

	key = "allow-signup"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("(auth mode user) Let anonymous clients create accounts. Otherwise only a logged in user can sign up new users"))

	key = "allowed-origins"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Comma-separated browser origins allowed to open /ws (e.g. http://localhost:5173), * allows all. Empty only allows the server's own origin"))

	key = "max-message-size"
	ServeCmd.PersistentFlags().Int64(key, session.DefaultMaxMessageSize, cmdUtil.WrapString("Largest accepted WebSocket frame in bytes, larger frames close the connection"))

	key = "auth-token"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The shared token for auth mode static"))

	key = "snapshot-file"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(local store) File the notes are restored from on start and saved to periodically and on shutdown. Empty disables persistence"))

	key = "snapshot-interval"
	ServeCmd.PersistentFlags().Duration(key, 0, cmdUtil.WrapString("(local store) Interval between snapshots, 0 only saves on shutdown"))

	key = "metrics"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Expose Prometheus metrics at /metrics"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	cmdUtil.SetupStoreClientFlags(ServeCmd)
}

// processConfig reads the flags and environment variables into the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveConfig.Endpoint = viper.GetString("endpoint")
	serveConfig.AuthMode = auth.Mode(viper.GetString("auth-mode"))
	serveConfig.AuthToken = viper.GetString("auth-token")
	serveConfig.Guard = viper.GetBool("store-guard")
	serveConfig.Metrics = viper.GetBool("metrics")
	serveConfig.SnapshotFile = viper.GetString("snapshot-file")
	serveConfig.SnapshotInterval = viper.GetDuration("snapshot-interval")
	serveConfig.OpenSignup = viper.GetBool("allow-signup")
	serveConfig.MaxMessageSize = viper.GetInt64("max-message-size")
	serveConfig.AllowedOrigins = nil
	for _, origin := range strings.Split(viper.GetString("allowed-origins"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			serveConfig.AllowedOrigins = append(serveConfig.AllowedOrigins, origin)
		}
	}

	if serveConfig.MaxMessageSize <= 0 {
		return fmt.Errorf("--max-message-size must be positive")
	}

	switch serveConfig.AuthMode {
	case auth.ModeNone, auth.ModeUser:
	case auth.ModeStatic:
		if serveConfig.AuthToken == "" {
			return fmt.Errorf("auth mode static requires --auth-token")
		}
	default:
		return fmt.Errorf("invalid auth mode %q (expected none, static or user)", serveConfig.AuthMode)
	}

	switch viper.GetString("store") {
	case "local":
	case "rpc":
		if serveConfig.SnapshotFile != "" {
			return fmt.Errorf("--snapshot-file only works with the local store, the rpc store persists itself")
		}
	default:
		return fmt.Errorf("invalid store %q (expected local or rpc)", viper.GetString("store"))
	}

	if serveConfig.SnapshotInterval < 0 {
		return fmt.Errorf("--snapshot-interval must not be negative")
	}

	_, err := common.ParseLogLevel(viper.GetString("log-level"))
	return err
}

// newBackend creates the store the notes live in
func newBackend() (store.IStore, error) {
	if viper.GetString("store") == "rpc" {
		return cmdUtil.NewStoreClient()
	}
	return lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }), nil
}

func run(_ *cobra.Command, _ []string) error {
	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return err
	}

	backend, err := newBackend()
	if err != nil {
		return err
	}

	srv, err := server.New(serveConfig, backend)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}
