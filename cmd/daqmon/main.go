package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/charlie0129/daqmon/pkg/client"
	"github.com/charlie0129/daqmon/pkg/version"
)

var (
	logLevel       = "info"
	unixSocketPath = "/var/run/daqmon.sock"
	configPath     = "daq_config.json"
)

var (
	gBasic        = "Basic:"
	gRecording    = "Recording:"
	gAdvanced     = "Advanced:"
	commandGroups = []string{
		gBasic,
		gRecording,
		gAdvanced,
	}
)

var apiClient *client.Client

func setupLogger() error {
	level, err := logrus.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

// setupViper lets DAQMON_* variables and an optional daqmon.{yaml,json,toml}
// file provide any flag.
func setupViper() {
	viper.SetEnvPrefix("DAQMON")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("daqmon")
	viper.AddConfigPath("/etc/daqmon/")
	viper.AddConfigPath("$HOME/.daqmon/")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err == nil {
		logrus.Debugf("using options file %s", viper.ConfigFileUsed())
	}
}

func handleCmdError(err error) {
	if errors.Is(err, client.ErrDaemonNotRunning) {
		fmt.Fprintln(os.Stderr, "\nError: daqmon daemon is not running")
		fmt.Fprintln(os.Stderr, "Start it with 'daqmon daemon', or point --daemon-socket at a running one.")
	} else if errors.Is(err, client.ErrPermissionDenied) {
		fmt.Fprintln(os.Stderr, "\nError: Permission Denied")
		fmt.Fprintln(os.Stderr, "  - Try running the command again with 'sudo'")
		fmt.Fprintln(os.Stderr, "  - Or restart the daemon with the '--allow-non-root-access' flag to grant permissions to your user")
	}
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daqmon",
		Short: "daqmon monitors and records analog channels of a data acquisition device",
		Long: `daqmon monitors and records analog channels of a data acquisition device.

A daemon owns the device and serves a local API on a unix socket. The other
commands talk to it: enable channels, calibrate them, start monitoring, and
record sessions to CSV.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			setupViper()
			if err := setupLogger(); err != nil {
				return err
			}
			apiClient = client.NewClient(viper.GetString("daemon-socket"))

			if cmd.Name() == "daemon" || cmd.Name() == "version" {
				return nil
			}
			daemonVersion, err := apiClient.GetVersion()
			if err == nil {
				if daemonVersion != version.Version {
					logrus.WithFields(logrus.Fields{
						"clientVersion": version.Version,
						"daemonVersion": daemonVersion,
					}).Warn("Version mismatch between client and daemon. daqmon may not work as expected.")
				}
			} else if errors.Is(err, client.ErrNotFound) {
				logrus.Error("daqmon daemon is too old to report its version.")
			}

			return nil
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", logLevel, "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&configPath, "config", configPath, "channel configuration file path")
	globalFlags.StringVar(&unixSocketPath, "daemon-socket", unixSocketPath, "daqmon daemon unix socket path")
	_ = viper.BindPFlags(globalFlags)

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewDaemonCommand(),
		NewVersionCommand(),
		NewStatusCommand(),
		NewPinsCommand(),
		NewRenameCommand(),
		NewCalibrateCommand(),
		NewEquationCommand(),
		NewSampleRateCommand(),
		NewDeviceCommand(),
		NewChannelCommand(),
		NewMonitorCommand(),
		NewRecordCommand(),
		NewScheduleCommand(),
		NewArchiveCommand(),
		NewWatchCommand(),
	)

	return cmd
}

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}
