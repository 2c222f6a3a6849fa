// Package integration handles external service interactions
package integration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/abelzeko/onewire-logger/internal/entities"
)

// DefaultMountPath is where OWFS is usually mounted
const DefaultMountPath = "/mnt/1wire"

// OneWireReader reads sensor values from an OWFS mounted file system
type OneWireReader struct {
	mountPath string
	now       func() time.Time
}

// NewOneWireReader creates a reader rooted at the given mount path
func NewOneWireReader(mountPath string) *OneWireReader {
	if mountPath == "" {
		mountPath = DefaultMountPath
	}
	return &OneWireReader{
		mountPath: mountPath,
		now:       time.Now,
	}
}

// WithClock replaces the clock used to stamp readings
func (r *OneWireReader) WithClock(now func() time.Time) *OneWireReader {
	r.now = now
	return r
}

// SensorPath returns the file holding the value for a descriptor
func (r *OneWireReader) SensorPath(d entities.SensorDescriptor) string {
	return filepath.Join(r.mountPath, d.ID, string(d.Type))
}

// ReadSensor reads the whole sensor file and stamps it with the current local time
func (r *OneWireReader) ReadSensor(d entities.SensorDescriptor) (entities.Reading, error) {
	path := r.SensorPath(d)
	value, err := os.ReadFile(path)
	if err != nil {
		return entities.Reading{}, fmt.Errorf("failed to read sensor %s: %v", d, err)
	}

	reading := entities.Reading{
		SensorID:  d.ID,
		Name:      d.Name,
		Timestamp: r.now().Local().Truncate(time.Second),
		Type:      d.Type,
		Value:     string(value),
	}
	log.Printf("Read %s from %s (%s): %q", d.Type, d.Name, d.ID, reading.Value)
	return reading, nil
}
