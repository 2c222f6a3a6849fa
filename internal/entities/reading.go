// Package entities contains the core domain objects for the onewire-logger application
package entities

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the format readings are stored with, in local time
const TimestampLayout = "2006-01-02 15:04:05"

// ReadingType identifies which measurement a sensor file yields
type ReadingType string

const (
	Temperature ReadingType = "temperature"
	Humidity    ReadingType = "humidity"
)

// ParseReadingType validates a reading type name
func ParseReadingType(s string) (ReadingType, error) {
	switch t := ReadingType(strings.TrimSpace(s)); t {
	case Temperature, Humidity:
		return t, nil
	}
	return "", fmt.Errorf("unknown reading type %q (want %q or %q)", s, Temperature, Humidity)
}

// SensorDescriptor identifies one physical measurement source
type SensorDescriptor struct {
	ID   string      `yaml:"id"`   // 1-wire address, e.g. 26.B9D2BC000000
	Type ReadingType `yaml:"type"` // Which file under the sensor directory to read
	Name string      `yaml:"name"` // Location shown in charts
}

// ParseDescriptor parses the compact "<id>:<type>:<name>" form
func ParseDescriptor(s string) (SensorDescriptor, error) {
	fields := strings.Split(s, ":")
	if len(fields) != 3 {
		return SensorDescriptor{}, fmt.Errorf("invalid sensor descriptor %q: want <id>:<type>:<name>", s)
	}
	d := SensorDescriptor{
		ID:   fields[0],
		Type: ReadingType(fields[1]),
		Name: fields[2],
	}
	if err := d.Validate(); err != nil {
		return SensorDescriptor{}, err
	}
	return d, nil
}

// Validate checks that all descriptor fields are usable
func (d SensorDescriptor) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("sensor descriptor has an empty id")
	}
	if d.Name == "" {
		return fmt.Errorf("sensor %s has an empty name", d.ID)
	}
	if _, err := ParseReadingType(string(d.Type)); err != nil {
		return fmt.Errorf("sensor %s: %v", d.ID, err)
	}
	return nil
}

func (d SensorDescriptor) String() string {
	return d.ID + ":" + string(d.Type) + ":" + d.Name
}

// Reading is a single sensor value at a point in time.
// Exactly one of the temperature or humidity columns is populated when stored,
// chosen by Type.
type Reading struct {
	SensorID  string
	Name      string
	Timestamp time.Time
	Type      ReadingType
	Value     string // Raw text as read from the sensor file
}

// Temperature returns the value if this is a temperature reading
func (r Reading) Temperature() (string, bool) {
	if r.Type != Temperature {
		return "", false
	}
	return r.Value, true
}

// Humidity returns the value if this is a humidity reading
func (r Reading) Humidity() (string, bool) {
	if r.Type != Humidity {
		return "", false
	}
	return r.Value, true
}

// FormattedTimestamp renders the timestamp the way it is stored
func (r Reading) FormattedTimestamp() string {
	return r.Timestamp.Format(TimestampLayout)
}
