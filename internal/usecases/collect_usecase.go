// Package usecases contains the application's business logic
package usecases

import (
	"fmt"
	"log"

	"github.com/abelzeko/onewire-logger/internal/entities"
	"github.com/abelzeko/onewire-logger/internal/repository"
)

// SensorReader reads the current value of one sensor
type SensorReader interface {
	ReadSensor(d entities.SensorDescriptor) (entities.Reading, error)
}

// CollectUseCase polls every configured sensor and stores the readings
type CollectUseCase struct {
	repo    repository.ReadingRepository
	reader  SensorReader
	sensors []entities.SensorDescriptor
}

// NewCollectUseCase creates a new collect use case
func NewCollectUseCase(repo repository.ReadingRepository, reader SensorReader, sensors []entities.SensorDescriptor) *CollectUseCase {
	return &CollectUseCase{
		repo:    repo,
		reader:  reader,
		sensors: sensors,
	}
}

// Collect reads every sensor once and saves all readings together.
// A single failed read aborts the run and nothing is stored.
func (uc *CollectUseCase) Collect() error {
	if len(uc.sensors) == 0 {
		return fmt.Errorf("no sensors configured")
	}
	log.Printf("Starting collection from %d sensors...", len(uc.sensors))

	readings := make([]entities.Reading, 0, len(uc.sensors))
	for _, sensor := range uc.sensors {
		reading, err := uc.reader.ReadSensor(sensor)
		if err != nil {
			return fmt.Errorf("collection aborted after %d of %d sensors: %v", len(readings), len(uc.sensors), err)
		}
		readings = append(readings, reading)
	}

	if err := uc.repo.SaveReadings(readings); err != nil {
		return fmt.Errorf("failed to save readings to repository: %v", err)
	}
	return nil
}
