package config

import (
	"fmt"
	"sort"

	"github.com/charlie0129/daqmon/pkg/calibration"
)

// PinType classifies a connector pin.
type PinType string

const (
	PinTypeAnalogInput  PinType = "Analog Input"
	PinTypeAnalogOutput PinType = "Analog Output"
	PinTypeGround       PinType = "Ground"
	PinTypeDigitalIO    PinType = "Digital I/O"
	PinTypeDigitalInput PinType = "Digital Input"
	PinTypePowerOutput  PinType = "Power Output"
	PinTypeReserved     PinType = "Reserved"
)

// Pin is one pin of the DAQ connector. Only analog inputs carry a device
// channel and can be monitored.
type Pin struct {
	Number        int                     `json:"pin"`
	Name          string                  `json:"name"`
	Type          PinType                 `json:"pinType"`
	Function      string                  `json:"function"`
	AnalogInput   bool                    `json:"analogInput"`
	DeviceChannel int                     `json:"deviceChannel"`
	Color         string                  `json:"color,omitempty"`
	Calibration   calibration.Calibration `json:"calibration"`
}

// Palette holds the display colors handed out to monitored channels, in order.
var Palette = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

// PaletteColor returns the i-th palette color, wrapping around.
func PaletteColor(i int) string {
	if i < 0 {
		i = -i
	}
	return Palette[i%len(Palette)]
}

// analogPins are the single-ended analog inputs of the 40-pin connector,
// wired to device channels CH0..CH7 in this order.
var analogPins = []int{1, 2, 4, 5, 7, 8, 10, 11}

var groundPins = []int{3, 6, 9, 12, 15, 17, 29, 31, 40}

// DefaultLayout returns the pin table of the 40-pin DAQ connector, sorted by
// pin number.
func DefaultLayout() []Pin {
	pins := make([]Pin, 0, 40)

	for i, n := range analogPins {
		pins = append(pins, Pin{
			Number:        n,
			Name:          fmt.Sprintf("Pressure_%d", i+1),
			Type:          PinTypeAnalogInput,
			Function:      fmt.Sprintf("CH%d IN", i),
			AnalogInput:   true,
			DeviceChannel: i,
		})
	}

	for _, n := range groundPins {
		pins = append(pins, Pin{Number: n, Name: "GND", Type: PinTypeGround, Function: "Ground"})
	}

	pins = append(pins,
		Pin{Number: 13, Name: "AO0", Type: PinTypeAnalogOutput, Function: "D/A OUT 0"},
		Pin{Number: 14, Name: "AO1", Type: PinTypeAnalogOutput, Function: "D/A OUT 1"},
		Pin{Number: 16, Name: "Reserved", Type: PinTypeReserved, Function: "Reserved"},
		Pin{Number: 18, Name: "Trigger", Type: PinTypeDigitalInput, Function: "TRIG_IN"},
		Pin{Number: 19, Name: "Sync", Type: PinTypeDigitalIO, Function: "SYNC"},
		Pin{Number: 20, Name: "Counter", Type: PinTypeDigitalInput, Function: "CTR"},
		Pin{Number: 30, Name: "Power", Type: PinTypePowerOutput, Function: "+VO"},
	)

	for i := 0; i < 8; i++ {
		pins = append(pins,
			Pin{Number: 21 + i, Name: fmt.Sprintf("PA%d", i), Type: PinTypeDigitalIO, Function: fmt.Sprintf("Port A%d", i)},
			Pin{Number: 32 + i, Name: fmt.Sprintf("PB%d", i), Type: PinTypeDigitalIO, Function: fmt.Sprintf("Port B%d", i)},
		)
	}

	for i := range pins {
		pins[i].Calibration = calibration.Default()
	}

	sortPins(pins)

	return pins
}

func sortPins(pins []Pin) {
	sort.Slice(pins, func(i, j int) bool { return pins[i].Number < pins[j].Number })
}
