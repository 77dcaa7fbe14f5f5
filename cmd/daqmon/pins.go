package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/charlie0129/daqmon/pkg/calibration"
	"github.com/charlie0129/daqmon/pkg/config"
)

func NewPinsCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:     "pins",
		GroupID: gBasic,
		Short:   "List connector pins",
		Long:    `List the analog input pins with their names and calibrations. Use --all to include every connector pin.`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pins, err := apiClient.GetPins()
			if err != nil {
				return err
			}
			enabled, err := apiClient.GetChannels()
			if err != nil {
				return err
			}
			on := make(map[int]bool, len(enabled))
			for _, p := range enabled {
				on[p] = true
			}

			for _, p := range pins {
				if !p.AnalogInput {
					if all {
						cmd.Printf("%3d  %-24s %s\n", p.Number, p.Name, p.Type)
					}
					continue
				}
				cal := "raw volts"
				if p.Calibration.Enabled {
					cal = fmt.Sprintf("%g %s @ %g V .. %g %s @ %g V",
						p.Calibration.Point1Physical, p.Calibration.DisplayUnit(), p.Calibration.Point1Voltage,
						p.Calibration.Point2Physical, p.Calibration.DisplayUnit(), p.Calibration.Point2Voltage)
				}
				cmd.Printf("%3d  %-24s AIN%d  %s  %s\n", p.Number, bold("%s", p.Name), p.DeviceChannel, bool2Text(on[p.Number]), cal)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include pins that are not analog inputs")
	return cmd
}

func NewRenameCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rename <pin> <name>",
		GroupID: gBasic,
		Short:   "Rename a pin",
		Args:    cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			pin, err := parseIntArg(args[0], "pin")
			if err != nil {
				return err
			}
			ret, err := apiClient.SetPinName(pin, args[1])
			if err != nil {
				return fmt.Errorf("failed to rename pin %d: %v", pin, err)
			}
			logResponse(ret)
			return nil
		},
	}
}

func NewCalibrateCommand() *cobra.Command {
	var (
		p1, v1, p2, v2 float64
		unit           string
		disable        bool
	)

	cmd := &cobra.Command{
		Use:     "calibrate <pin>",
		GroupID: gBasic,
		Short:   "Set the two-point calibration of a pin",
		Long: `Set the two-point calibration of a pin.

Readings are mapped linearly so that --v1 volts reads --p1 and --v2 volts
reads --p2. Flags that are not given keep their current value.`,
		Example: `  daqmon calibrate 2 --p1 0 --v1 0.5 --p2 100 --v2 4.5 --unit psi
  daqmon calibrate 2 --disable`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pin, err := parseIntArg(args[0], "pin")
			if err != nil {
				return err
			}
			current, err := apiClient.GetPin(pin)
			if err != nil {
				return err
			}

			cal := mergeCalibration(cmd, current, p1, v1, p2, v2, unit, disable)
			ret, err := apiClient.SetCalibration(pin, cal)
			if err != nil {
				return fmt.Errorf("failed to calibrate pin %d: %v", pin, err)
			}
			logResponse(ret)

			if eq, err := apiClient.GetEquation(pin); err == nil {
				cmd.Println(eq)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.Float64Var(&p1, "p1", 0, "Physical value at the first point")
	f.Float64Var(&v1, "v1", 0, "Voltage at the first point")
	f.Float64Var(&p2, "p2", 0, "Physical value at the second point")
	f.Float64Var(&v2, "v2", 0, "Voltage at the second point")
	f.StringVar(&unit, "unit", "", "Physical unit, e.g. psi")
	f.BoolVar(&disable, "disable", false, "Report raw volts instead")

	return cmd
}

// mergeCalibration applies the flags the user set on top of the pin's
// calibration. Setting any point or the unit enables it.
func mergeCalibration(cmd *cobra.Command, p config.Pin, p1, v1, p2, v2 float64, unit string, disable bool) calibration.Calibration {
	cal := p.Calibration
	f := cmd.Flags()
	changed := false
	set := func(name string, dst *float64, v float64) {
		if f.Changed(name) {
			*dst = v
			changed = true
		}
	}
	set("p1", &cal.Point1Physical, p1)
	set("v1", &cal.Point1Voltage, v1)
	set("p2", &cal.Point2Physical, p2)
	set("v2", &cal.Point2Voltage, v2)
	if f.Changed("unit") {
		cal.Unit = unit
		changed = true
	}
	if changed {
		cal.Enabled = true
	}
	if disable {
		cal.Enabled = false
	}
	return cal
}

func NewEquationCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "equation <pin>",
		GroupID: gBasic,
		Short:   "Show the calibration equation of a pin",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pin, err := parseIntArg(args[0], "pin")
			if err != nil {
				return err
			}
			eq, err := apiClient.GetEquation(pin)
			if err != nil {
				return err
			}
			cmd.Println(eq)
			return nil
		},
	}
}

func NewSampleRateCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "sample-rate [hz]",
		Aliases: []string{"rate"},
		GroupID: gBasic,
		Short:   "Show or set the sample rate",
		Long: `Show or set the sample rate.

This is a rate in Hz from ` + strconv.Itoa(config.MinSampleRate) + ` to ` + strconv.Itoa(config.MaxSampleRate) + `, applied to every enabled channel.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				rate, err := apiClient.GetSampleRate()
				if err != nil {
					return err
				}
				cmd.Printf("%d Hz\n", rate)
				return nil
			}

			rate, err := parseIntArg(args[0], "sample rate")
			if err != nil {
				return err
			}
			ret, err := apiClient.SetSampleRate(rate)
			if err != nil {
				return fmt.Errorf("failed to set sample rate: %v", err)
			}
			logResponse(ret)
			return nil
		},
	}
}
