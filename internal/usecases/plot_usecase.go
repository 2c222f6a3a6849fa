package usecases

import (
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/abelzeko/onewire-logger/internal/chart"
	"github.com/abelzeko/onewire-logger/internal/entities"
	"github.com/abelzeko/onewire-logger/internal/repository"
)

// PlotUseCase selects readings for a sensor and turns them into charts
type PlotUseCase struct {
	repo      repository.ReadingRepository
	renderer  *chart.Renderer
	outputDir string
	now       func() time.Time
}

// NewPlotUseCase creates a new plot use case writing images to outputDir
func NewPlotUseCase(repo repository.ReadingRepository, renderer *chart.Renderer, outputDir string) *PlotUseCase {
	return &PlotUseCase{
		repo:      repo,
		renderer:  renderer,
		outputDir: outputDir,
		now:       time.Now,
	}
}

// WithClock replaces the clock used to anchor the lookback window
func (uc *PlotUseCase) WithClock(now func() time.Time) *PlotUseCase {
	uc.now = now
	return uc
}

// Window returns [now - days, now] at second precision
func (uc *PlotUseCase) Window(days int) (time.Time, time.Time, error) {
	if days <= 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("days must be positive, got %d", days)
	}
	to := uc.now().Local().Truncate(time.Second)
	return to.AddDate(0, 0, -days), to, nil
}

// SelectReadings returns the readings of a sensor inside the lookback window
func (uc *PlotUseCase) SelectReadings(name string, typ entities.ReadingType, days int) ([]entities.Reading, time.Time, time.Time, error) {
	from, to, err := uc.Window(days)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}
	log.Printf("Selecting %s readings for %s between %s and %s", typ, name,
		from.Format(entities.TimestampLayout), to.Format(entities.TimestampLayout))

	readings, err := uc.repo.GetReadings(name, typ, from, to)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}
	log.Printf("Found %d %s readings for %s", len(readings), typ, name)
	return readings, from, to, nil
}

// BuildSeries converts the selected readings into a chart series.
// Values that are not numbers are skipped.
func (uc *PlotUseCase) BuildSeries(name string, typ entities.ReadingType, days int) (chart.Series, error) {
	readings, from, to, err := uc.SelectReadings(name, typ, days)
	if err != nil {
		return chart.Series{}, err
	}

	series := chart.Series{
		Title:  name,
		YLabel: yLabel(typ),
		From:   from,
		To:     to,
		Points: make([]chart.Point, 0, len(readings)),
	}
	skipped := 0
	for _, rd := range readings {
		value, err := strconv.ParseFloat(strings.TrimSpace(rd.Value), 64)
		if err != nil {
			skipped++
			continue
		}
		series.Points = append(series.Points, chart.Point{Time: rd.Timestamp, Value: value})
	}
	if skipped > 0 {
		log.Printf("Skipped %d readings for %s with non-numeric values", skipped, name)
	}
	return series, nil
}

func yLabel(typ entities.ReadingType) string {
	if typ == entities.Humidity {
		return "Humidity %"
	}
	return "Temperature °C"
}

// OutputPath returns where the chart for a sensor is written
func (uc *PlotUseCase) OutputPath(name string, typ entities.ReadingType) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid sensor name %q", name)
	}
	suffix := "temp"
	if typ == entities.Humidity {
		suffix = "humidity"
	}
	return filepath.Join(uc.outputDir, name+"_"+suffix+".png"), nil
}

// PlotSensor renders the chart for one sensor to the output directory
func (uc *PlotUseCase) PlotSensor(name string, typ entities.ReadingType, days int) (string, error) {
	path, err := uc.OutputPath(name, typ)
	if err != nil {
		return "", err
	}
	series, err := uc.BuildSeries(name, typ, days)
	if err != nil {
		return "", err
	}
	if err := uc.renderer.Save(path, series); err != nil {
		return "", err
	}
	return path, nil
}

// RenderSensor writes the chart for one sensor as PNG into w
func (uc *PlotUseCase) RenderSensor(w io.Writer, name string, typ entities.ReadingType, days int) error {
	series, err := uc.BuildSeries(name, typ, days)
	if err != nil {
		return err
	}
	return uc.renderer.WriteTo(w, series)
}

// GetSensorNames returns every sensor name that has stored readings
func (uc *PlotUseCase) GetSensorNames() ([]string, error) {
	log.Println("Retrieving list of sensors")
	return uc.repo.GetSensorNames()
}

// PlotNames resolves which sensors to plot: the configured ones, or all stored names
func (uc *PlotUseCase) PlotNames(configured []string) ([]string, error) {
	if len(configured) > 0 {
		return configured, nil
	}
	return uc.GetSensorNames()
}

// PlotAll renders every named sensor and returns the written paths.
// It keeps going after a failure and reports the first error.
func (uc *PlotUseCase) PlotAll(names []string, typ entities.ReadingType, days int) ([]string, error) {
	var (
		paths    []string
		firstErr error
	)
	for _, name := range names {
		path, err := uc.PlotSensor(name, typ, days)
		if err != nil {
			log.Printf("Failed to plot %s: %v", name, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to plot %s: %v", name, err)
			}
			continue
		}
		paths = append(paths, path)
	}
	return paths, firstErr
}

// GetLatestReadings returns the newest temperature and humidity readings for a sensor
func (uc *PlotUseCase) GetLatestReadings(name string) ([]entities.Reading, error) {
	log.Printf("Retrieving latest readings for sensor: %s", name)
	var latest []entities.Reading
	for _, typ := range []entities.ReadingType{entities.Temperature, entities.Humidity} {
		rd, ok, err := uc.repo.GetLatestReading(name, typ)
		if err != nil {
			return nil, err
		}
		if ok {
			latest = append(latest, rd)
		}
	}
	return latest, nil
}

// FormatLatest formats the newest readings of a sensor for display
func FormatLatest(name string, readings []entities.Reading) string {
	if len(readings) == 0 {
		return fmt.Sprintf("No readings stored for sensor '%s'.", name)
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Latest readings for %s:\n\n", name))
	for _, rd := range readings {
		value := strings.TrimSpace(rd.Value)
		switch rd.Type {
		case entities.Temperature:
			result.WriteString(fmt.Sprintf("🌡️ Temperature: %s °C\n", value))
		case entities.Humidity:
			result.WriteString(fmt.Sprintf("💧 Humidity: %s %%\n", value))
		}
		result.WriteString(fmt.Sprintf("🕒 %s\n", rd.FormattedTimestamp()))
	}
	return result.String()
}
