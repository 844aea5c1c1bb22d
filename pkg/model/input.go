package model

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"
)

const (
	DefaultMaxTrucks      = 60
	DefaultTargetDuration = 25.0    // Hours
	DefaultSlackWeight    = 10000.0 // Objective weight of every hour beyond the target
)

type Store string

type Route struct {
	Stores   []Store
	Duration float64 // Hours
}

func (route Route) Visits(store Store) bool {
	return slices.Contains(route.Stores, store)
}

type Instance struct {
	Day            string
	Region         string
	Routes         []Route
	Stores         []Store // Stores that must be served exactly once
	MaxTrucks      int
	TargetDuration float64
	SlackWeight    float64
}

func NewInstance(day, region string, routes []Route, stores []Store) Instance {
	return Instance{
		Day:            day,
		Region:         region,
		Routes:         routes,
		Stores:         stores,
		MaxTrucks:      DefaultMaxTrucks,
		TargetDuration: DefaultTargetDuration,
		SlackWeight:    DefaultSlackWeight,
	}
}

func (instance Instance) Name() string {
	return fmt.Sprintf("%v_%v", instance.Day, instance.Region)
}

type RawRoute struct {
	Stores   []string
	Duration *float64 // Estimated from travel durations when absent
}

type RawInstance struct {
	Day       string
	Region    string
	Stores    []string // Defaults to every store of the region
	MaxTrucks int
	Routes    []RawRoute
}

type RawModelInput struct {
	Regions   map[string][]string
	Instances []RawInstance
}

type Parameters struct {
	MaxTrucks      int
	TargetDuration float64
	SlackWeight    float64
}

func DefaultParameters() Parameters {
	return Parameters{
		MaxTrucks:      DefaultMaxTrucks,
		TargetDuration: DefaultTargetDuration,
		SlackWeight:    DefaultSlackWeight,
	}
}

// DurationEstimator computes the duration in hours of a route whose input omits it
type DurationEstimator func(stops []Store) (float64, error)

func InputFromJson(file string) (RawModelInput, error) {
	bytes, err := os.ReadFile(file)
	if err != nil {
		return RawModelInput{}, err
	}
	var inputJson map[string]any
	if err := json.Unmarshal(bytes, &inputJson); err != nil {
		return RawModelInput{}, err
	}

	var rawInput RawModelInput
	if err := mapstructure.Decode(inputJson, &rawInput); err != nil {
		return RawModelInput{}, fmt.Errorf("cannot decode input file: %w", err)
	}
	return rawInput, nil
}

func ProcessRawInput(rawInput RawModelInput, parameters Parameters, estimate DurationEstimator) ([]Instance, error) {
	toStores := func(names []string) []Store {
		return lo.Map(names, func(name string, _ int) Store { return Store(name) })
	}

	instances := make([]Instance, 0, len(rawInput.Instances))
	for _, rawInstance := range rawInput.Instances {
		instance := Instance{
			Day:            rawInstance.Day,
			Region:         rawInstance.Region,
			Stores:         toStores(rawInstance.Stores),
			MaxTrucks:      parameters.MaxTrucks,
			TargetDuration: parameters.TargetDuration,
			SlackWeight:    parameters.SlackWeight,
		}
		if rawInstance.MaxTrucks != 0 {
			instance.MaxTrucks = rawInstance.MaxTrucks
		}
		if len(instance.Stores) == 0 {
			instance.Stores = toStores(rawInput.Regions[rawInstance.Region])
		}

		//** Manage routes
		instance.Routes = make([]Route, 0, len(rawInstance.Routes))
		for index, rawRoute := range rawInstance.Routes {
			route := Route{Stores: toStores(rawRoute.Stores)}
			if rawRoute.Duration != nil {
				route.Duration = *rawRoute.Duration
			} else if estimate == nil {
				return nil, fmt.Errorf("route %d of %v has no duration and no travel durations were provided", index, instance.Name())
			} else {
				duration, err := estimate(route.Stores)
				if err != nil {
					return nil, fmt.Errorf("cannot estimate duration of route %d of %v: %w", index, instance.Name(), err)
				}
				route.Duration = duration
			}
			instance.Routes = append(instance.Routes, route)
		}

		instances = append(instances, instance)
	}

	return instances, nil
}

// CloseStores returns a copy of the region groups without the closed stores
func CloseStores(groups map[string][]Store, closed []Store) map[string][]Store {
	return lo.MapValues(groups, func(stores []Store, _ string) []Store {
		return lo.Reject(stores, func(store Store, _ int) bool { return slices.Contains(closed, store) })
	})
}
