package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/limaJavier/routeselection/pkg/model"
	"github.com/limaJavier/routeselection/pkg/planner"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

type Entry struct {
	Routes    [][]string `json:"routes" yaml:"routes"`
	Durations []float64  `json:"durations" yaml:"durations"`
	Optimal   bool       `json:"optimal" yaml:"optimal"`
	Status    string     `json:"status" yaml:"status"`
	Objective float64    `json:"objective" yaml:"objective"`
	Slack     float64    `json:"slack" yaml:"slack"`
	Error     string     `json:"error,omitempty" yaml:"error,omitempty"`
}

// Document maps day -> region -> selected routes
type Document struct {
	RunID string                      `json:"runId" yaml:"runId"`
	Days  map[string]map[string]Entry `json:"days" yaml:"days"`
}

func FromPlan(plan planner.Plan) Document {
	document := Document{
		RunID: plan.RunID,
		Days:  make(map[string]map[string]Entry),
	}
	for _, result := range plan.Results {
		solution := result.Solution
		entry := Entry{
			Routes: lo.Map(solution.Routes, func(route model.Route, _ int) []string {
				return lo.Map(route.Stores, func(store model.Store, _ int) string { return string(store) })
			}),
			Durations: lo.Map(solution.Routes, func(route model.Route, _ int) float64 { return route.Duration }),
			Optimal:   solution.Optimal && result.Err == nil,
			Status:    solution.Status.String(),
			Objective: solution.Objective,
			Slack:     solution.Slack,
		}
		if result.Err != nil {
			entry.Status = "failed"
			if result.Malformed() {
				entry.Status = "malformed"
			}
			entry.Error = result.Err.Error()
		}

		day := result.Instance.Day
		if _, ok := document.Days[day]; !ok {
			document.Days[day] = make(map[string]Entry)
		}
		document.Days[day][result.Instance.Region] = entry
	}
	return document
}

// Routes returns the stores of every route selected for region on day
func (document Document) Routes(day, region string) ([][]model.Store, bool) {
	entry, ok := document.Days[day][region]
	if !ok {
		return nil, false
	}
	return lo.Map(entry.Routes, func(stores []string, _ int) []model.Store {
		return lo.Map(stores, func(store string, _ int) model.Store { return model.Store(store) })
	}), true
}

// Save writes document to path as YAML when its extension is .yaml or .yml and as JSON otherwise
func Save(path string, document Document) error {
	var (
		content []byte
		err     error
	)
	if isYaml(path) {
		content, err = yaml.Marshal(document)
	} else {
		content, err = json.MarshalIndent(document, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("cannot encode plan: %w", err)
	}

	if err := os.WriteFile(path, content, 0666); err != nil {
		return fmt.Errorf("cannot write plan to %v: %w", path, err)
	}
	return nil
}

func Load(path string) (Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}

	var document Document
	if isYaml(path) {
		err = yaml.Unmarshal(content, &document)
	} else {
		err = json.Unmarshal(content, &document)
	}
	if err != nil {
		return Document{}, fmt.Errorf("cannot decode plan %v: %w", path, err)
	}
	return document, nil
}

func isYaml(path string) bool {
	extension := strings.ToLower(filepath.Ext(path))
	return extension == ".yaml" || extension == ".yml"
}
