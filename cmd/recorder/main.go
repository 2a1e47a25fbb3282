package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cli carries the settings resolved from flags, TAWA_ env vars and the config file
type cli struct {
	v      *viper.Viper
	logger *zap.Logger
}

func newRootCommand() *cobra.Command {
	c := &cli{v: viper.New(), logger: zap.NewNop()}

	root := &cobra.Command{
		Use:           "tawa-recorder",
		Short:         "Record stand-up material and send it to the tawa server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (yaml)")
	flags.String("server", "http://localhost:8080", "tawa server base URL")
	flags.String("user", "", "owner id sent as userId when no token is given")
	flags.String("token", "", "bearer token for the server")
	flags.Bool("verbose", false, "log to stderr")

	root.AddCommand(newRecordCommand(c), newUploadCommand(c), newTokenCommand(c), newWatchCommand(c))
	return root
}

func (c *cli) init(cmd *cobra.Command) error {
	c.v.SetEnvPrefix("TAWA")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	if err := c.v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	if path := c.v.GetString("config"); path != "" {
		c.v.SetConfigFile(path)
		if err := c.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	if c.v.GetBool("verbose") {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		c.logger = logger
	}
	return nil
}

func (c *cli) identity() (token, user string, err error) {
	token = c.v.GetString("token")
	user = c.v.GetString("user")
	if token == "" && user == "" {
		return "", "", fmt.Errorf("either --token or --user is required")
	}
	return token, user, nil
}
