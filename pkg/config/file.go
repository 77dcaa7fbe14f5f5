package config

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/daqmon/pkg/calibration"
	"github.com/charlie0129/daqmon/pkg/utils/ptr"
)

// FileVersion is written into every saved configuration.
const FileVersion = "1.0"

const defaultSampleRate = 100

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

// NewFile loads the configuration at configPath. A missing or unusable file
// yields the default layout rather than an error.
func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil || len(c.Pins) == 0 {
		c = NewDefaultRawFileConfig()
	}

	f := &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}

	return f
}

// RawFileConfig is the on-disk JSON document.
type RawFileConfig struct {
	Version    string `json:"version"`
	Timestamp  string `json:"timestamp,omitempty"`
	SampleRate *int   `json:"sampleRate,omitempty"`
	Pins       []Pin  `json:"pins"`
}

// NewDefaultRawFileConfig returns the generated configuration used when no
// saved state is available.
func NewDefaultRawFileConfig() *RawFileConfig {
	return &RawFileConfig{
		Version:    FileVersion,
		SampleRate: ptr.To(defaultSampleRate),
		Pins:       DefaultLayout(),
	}
}

func NewRawFileConfigFromConfig(c Config) (*RawFileConfig, error) {
	if c == nil {
		return nil, pkgerrors.New("config is nil")
	}

	return &RawFileConfig{
		Version:    FileVersion,
		SampleRate: ptr.To(c.SampleRate()),
		Pins:       c.Pins(),
	}, nil
}

func (f *File) Pins() []Pin {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	pins := make([]Pin, len(f.c.Pins))
	copy(pins, f.c.Pins)
	return pins
}

func (f *File) Pin(number int) (Pin, bool) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	i := f.indexOf(number)
	if i < 0 {
		return Pin{}, false
	}
	return f.c.Pins[i], true
}

func (f *File) AnalogPins() []Pin {
	var pins []Pin
	for _, p := range f.Pins() {
		if p.AnalogInput {
			pins = append(pins, p)
		}
	}
	return pins
}

func (f *File) SampleRate() int {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.SampleRate, defaultSampleRate)
}

func (f *File) SetPinName(number int, name string) error {
	if f.c == nil {
		panic("config is nil")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return pkgerrors.Wrapf(ErrInvalidName, "pin %d", number)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.indexOf(number)
	if i < 0 {
		return pkgerrors.Wrapf(ErrPinNotFound, "pin %d", number)
	}
	f.c.Pins[i].Name = name
	return nil
}

func (f *File) SetCalibration(number int, cal calibration.Calibration) error {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.indexOf(number)
	if i < 0 {
		return pkgerrors.Wrapf(ErrPinNotFound, "pin %d", number)
	}
	if !f.c.Pins[i].AnalogInput {
		return pkgerrors.Wrapf(ErrNotAnalogInput, "pin %d", number)
	}
	f.c.Pins[i].Calibration = cal.Normalize()
	return nil
}

func (f *File) SetPinColor(number int, color string) error {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.indexOf(number)
	if i < 0 {
		return pkgerrors.Wrapf(ErrPinNotFound, "pin %d", number)
	}
	f.c.Pins[i].Color = color
	return nil
}

func (f *File) SetSampleRate(rate int) error {
	if f.c == nil {
		panic("config is nil")
	}

	if rate < MinSampleRate || rate > MaxSampleRate {
		return pkgerrors.Wrapf(ErrInvalidSampleRate, "must be between %d and %d Hz, got %d", MinSampleRate, MaxSampleRate, rate)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.SampleRate = &rate
	return nil
}

// indexOf must be called with f.mu held.
func (f *File) indexOf(number int) int {
	for i := range f.c.Pins {
		if f.c.Pins[i].Number == number {
			return i
		}
	}
	return -1
}

// Load reads the file. Missing, unreadable, empty or unparseable files are
// treated as "no saved state" and replaced by the default layout. An out of
// range sample rate falls back to the default rate.
func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			logrus.Infof("no config file found at %s, using default layout", f.filepath)
			f.c = NewDefaultRawFileConfig()
			return nil
		}
		logrus.WithError(err).Warnf("failed to open file %s, using default layout", f.filepath)
		f.c = NewDefaultRawFileConfig()
		return nil
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	// Since we want to tell if the file is empty, using json.Decoder will
	// not work.
	b, err := io.ReadAll(fp)
	if err != nil {
		logrus.WithError(err).Warnf("failed to read file %s, using default layout", f.filepath)
		f.c = NewDefaultRawFileConfig()
		return nil
	}

	if strings.TrimSpace(string(b)) == "" {
		f.c = NewDefaultRawFileConfig()
		return nil
	}

	conf := RawFileConfig{}
	err = json.Unmarshal(b, &conf)
	if err != nil {
		logrus.WithError(err).Warnf("failed to unmarshal config from file %s, using default layout", f.filepath)
		f.c = NewDefaultRawFileConfig()
		return nil
	}
	if len(conf.Pins) == 0 {
		logrus.Warnf("config file %s has no pins, using default layout", f.filepath)
		f.c = NewDefaultRawFileConfig()
		return nil
	}

	if conf.SampleRate != nil && (*conf.SampleRate < MinSampleRate || *conf.SampleRate > MaxSampleRate) {
		logrus.Warnf("config file %s has sample rate %d Hz outside %d..%d Hz, using %d Hz",
			f.filepath, *conf.SampleRate, MinSampleRate, MaxSampleRate, defaultSampleRate)
		conf.SampleRate = ptr.To(defaultSampleRate)
	}

	sortPins(conf.Pins)
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	f.c.Version = FileVersion
	f.c.Timestamp = time.Now().Format(time.RFC3339)

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	if f.c == nil {
		panic("config is nil")
	}

	calibrated := 0
	analog := f.AnalogPins()
	for _, p := range analog {
		if p.Calibration.Enabled {
			calibrated++
		}
	}

	return logrus.Fields{
		"path":       f.filepath,
		"pins":       len(f.Pins()),
		"analogPins": len(analog),
		"calibrated": calibrated,
		"sampleRate": f.SampleRate(),
	}
}
