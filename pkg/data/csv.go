package data

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/limaJavier/routeselection/pkg/model"
)

const secondsPerHour = 3600.0

// ReadLocationGroups reads a CSV file with one column per region listing its stores.
// A column ends at its first blank cell and underscores in store names stand for spaces.
func ReadLocationGroups(file string) (map[string][]model.Store, error) {
	records, err := readRecords(file)
	if err != nil {
		return nil, err
	} else if len(records) == 0 {
		return nil, fmt.Errorf("location groups file %v is empty", file)
	}

	header := records[0]
	groups := make(map[string][]model.Store, len(header))
	ended := make([]bool, len(header))
	for _, region := range header {
		groups[strings.TrimSpace(region)] = make([]model.Store, 0)
	}
	for _, record := range records[1:] {
		for column, region := range header {
			if column >= len(record) || ended[column] {
				continue
			}
			name := strings.TrimSpace(record[column])
			if name == "" {
				ended[column] = true
				continue
			}
			region = strings.TrimSpace(region)
			groups[region] = append(groups[region], model.Store(strings.ReplaceAll(name, "_", " ")))
		}
	}
	return groups, nil
}

// Durations is a travel duration matrix in hours
type Durations struct {
	index  map[model.Store]int
	matrix [][]float64
}

// ReadTravelDurations reads a square CSV matrix of travel durations in seconds whose first row and column name the locations
func ReadTravelDurations(file string) (*Durations, error) {
	records, err := readRecords(file)
	if err != nil {
		return nil, err
	} else if len(records) == 0 {
		return nil, fmt.Errorf("travel durations file %v is empty", file)
	}

	names := records[0][1:]
	durations := &Durations{
		index:  make(map[model.Store]int, len(names)),
		matrix: make([][]float64, 0, len(names)),
	}
	for position, name := range names {
		durations.index[model.Store(strings.TrimSpace(name))] = position
	}

	for line, record := range records[1:] {
		if len(record) != len(names)+1 {
			return nil, fmt.Errorf("row %d of %v has %d values, expected %d", line+1, file, len(record)-1, len(names))
		} else if position, ok := durations.index[model.Store(strings.TrimSpace(record[0]))]; !ok || position != line {
			return nil, fmt.Errorf("row %d of %v is labelled \"%v\" but column %d is \"%v\"", line+1, file, record[0], line+1, strings.TrimSpace(names[min(line, len(names)-1)]))
		}

		row := make([]float64, len(names))
		for column, value := range record[1:] {
			seconds, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid duration at row %d column %d of %v: %w", line+1, column+1, file, err)
			} else if seconds < 0 {
				return nil, fmt.Errorf("negative duration at row %d column %d of %v", line+1, column+1, file)
			}
			row[column] = seconds / secondsPerHour
		}
		durations.matrix = append(durations.matrix, row)
	}

	if len(durations.matrix) != len(names) {
		return nil, fmt.Errorf("travel durations matrix of %v is not square: %d rows and %d columns", file, len(durations.matrix), len(names))
	}
	return durations, nil
}

// Between returns the travel duration in hours from one location to another
func (durations *Durations) Between(from, to model.Store) (float64, error) {
	i, ok := durations.index[from]
	if !ok {
		return 0, fmt.Errorf("unknown location \"%v\"", from)
	}
	j, ok := durations.index[to]
	if !ok {
		return 0, fmt.Errorf("unknown location \"%v\"", to)
	}
	return durations.matrix[i][j], nil
}

// RouteDuration sums the legs depot -> stops... -> depot plus a service time per stop, all in hours.
// An empty depot leaves only the legs between consecutive stops.
func (durations *Durations) RouteDuration(depot model.Store, stops []model.Store, servicePerStop float64) (float64, error) {
	path := stops
	if depot != "" {
		path = append(append([]model.Store{depot}, stops...), depot)
	}

	total := servicePerStop * float64(len(stops))
	for leg := 1; leg < len(path); leg++ {
		duration, err := durations.Between(path[leg-1], path[leg])
		if err != nil {
			return 0, err
		}
		total += duration
	}
	return total, nil
}

func (durations *Durations) Estimator(depot model.Store, servicePerStop float64) model.DurationEstimator {
	return func(stops []model.Store) (float64, error) {
		return durations.RouteDuration(depot, stops, servicePerStop)
	}
}

func readRecords(file string) ([][]string, error) {
	handle, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	reader := csv.NewReader(handle)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("cannot read %v: %w", file, err)
	}
	return records, nil
}
