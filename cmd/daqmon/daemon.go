package main

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/charlie0129/daqmon/pkg/archive"
	"github.com/charlie0129/daqmon/pkg/daemon"
	"github.com/charlie0129/daqmon/pkg/daq"
	"github.com/charlie0129/daqmon/pkg/publish"
	"github.com/charlie0129/daqmon/pkg/version"
)

// daemonOptions reads the daemon flags, which may also come from DAQMON_*
// variables or the options file.
func daemonOptions() daemon.Options {
	return daemon.Options{
		ConfigPath:   viper.GetString("config"),
		SocketPath:   viper.GetString("daemon-socket"),
		AllowNonRoot: viper.GetBool("allow-non-root-access"),
		OutputDir:    viper.GetString("output-dir"),
		Probers: daq.ProberOptions{
			SerialPorts: viper.GetStringSlice("serial-port"),
			SerialBaud:  viper.GetInt("serial-baud"),
			Simulate:    viper.GetBool("simulate"),
		},
		AutoDetect: viper.GetBool("auto-detect"),
		MQTT: publish.Options{
			Broker:   viper.GetString("mqtt-broker"),
			ClientID: viper.GetString("mqtt-client-id"),
			Topic:    viper.GetString("mqtt-topic"),
			QoS:      byte(viper.GetUint("mqtt-qos")),
		},
		ArchiveDriver:  viper.GetString("archive-driver"),
		ArchiveDSN:     viper.GetString("archive-dsn"),
		RecordSchedule: viper.GetString("record-schedule"),
		RecordDuration: viper.GetDuration("record-duration"),
	}
}

// NewDaemonCommand .
func NewDaemonCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "daemon",
		Short:   "Run daqmon daemon in the foreground",
		GroupID: gAdvanced,
		RunE: func(_ *cobra.Command, _ []string) error {
			opts := daemonOptions()
			logrus.WithFields(logrus.Fields{
				"version":  version.Version,
				"commit":   version.GitCommit,
				"socket":   opts.SocketPath,
				"simulate": opts.Probers.Simulate,
			}).Info("daqmon daemon starting")
			return daemon.Run(opts)
		},
	}

	f := cmd.Flags()

	f.Bool("allow-non-root-access", false, "Allow non-root users to access the daemon.")
	f.String("output-dir", ".", "Directory for exports and plots given as relative paths.")
	f.Bool("simulate", false, "Fall back to a simulated device when no hardware is found.")
	f.Bool("auto-detect", true, "Look for a device at startup.")
	f.StringSlice("serial-port", daq.DefaultSerialPorts, "Glob patterns of serial ports to probe.")
	f.Int("serial-baud", daq.DefaultSerialBaud, "Baud rate of serial devices.")
	f.String("mqtt-broker", "", "Publish live samples to this MQTT broker, e.g. tcp://localhost:1883.")
	f.String("mqtt-client-id", publish.DefaultClientID, "MQTT client ID.")
	f.String("mqtt-topic", publish.DefaultTopic, "MQTT topic for live samples.")
	f.Uint("mqtt-qos", 0, "MQTT QoS level.")
	f.String("archive-driver", "", "Archive exported sessions to a database, one of ["+strings.Join(archive.Drivers(), ", ")+"].")
	f.String("archive-dsn", "daqmon.db", "Archive database DSN.")
	f.String("record-schedule", "", "Cron expression for unattended recordings.")
	f.Duration("record-duration", daemon.DefaultRecordDuration, "Length of each scheduled recording.")

	_ = viper.BindPFlags(f)

	return cmd
}
