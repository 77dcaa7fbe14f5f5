package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func parseIntArg(arg string, valueName string) (int, error) {
	value, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", valueName, err)
	}
	return value, nil
}

// logResponse prints whatever the daemon said unless it is the plain "ok".
func logResponse(ret string) {
	if ret != "" && ret != "ok" {
		logrus.Infof("daemon responded: %s", ret)
	}
}

func newEnableDisableCommand(
	use, short string,
	enableFunc func(args []string) (string, error),
	disableFunc func(args []string) (string, error),
	args cobra.PositionalArgs,
) *cobra.Command {
	cmd := &cobra.Command{
		Use:     use,
		Short:   short,
		GroupID: gBasic,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "enable",
			Short: "Enable " + short,
			Args:  args,
			RunE: func(_ *cobra.Command, args []string) error {
				ret, err := enableFunc(args)
				if err != nil {
					return fmt.Errorf("failed to enable %s: %v", use, err)
				}
				logResponse(ret)
				return nil
			},
		},
		&cobra.Command{
			Use:   "disable",
			Short: "Disable " + short,
			Args:  args,
			RunE: func(_ *cobra.Command, args []string) error {
				ret, err := disableFunc(args)
				if err != nil {
					return fmt.Errorf("failed to disable %s: %v", use, err)
				}
				logResponse(ret)
				return nil
			},
		},
	)

	return cmd
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
