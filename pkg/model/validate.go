package model

import (
	"fmt"
	"math"

	"github.com/samber/lo"
)

// MalformedInstanceError reports an instance that cannot be modelled and is never handed to a solver
type MalformedInstanceError struct {
	Day    string
	Region string
	Reason string
}

func (err *MalformedInstanceError) Error() string {
	return fmt.Sprintf("malformed instance %v/%v: %v", err.Day, err.Region, err.Reason)
}

func malformed(instance Instance, format string, args ...any) error {
	return &MalformedInstanceError{
		Day:    instance.Day,
		Region: instance.Region,
		Reason: fmt.Sprintf(format, args...),
	}
}

func (instance Instance) Validate() error {
	if len(instance.Routes) == 0 {
		return malformed(instance, "empty route list")
	} else if instance.MaxTrucks <= 0 {
		return malformed(instance, "maximum number of trucks must be positive: %v", instance.MaxTrucks)
	} else if !finite(instance.TargetDuration) {
		return malformed(instance, "target duration must be finite: %v", instance.TargetDuration)
	} else if !finite(instance.SlackWeight) || instance.SlackWeight < 0 {
		return malformed(instance, "slack weight must be finite and non-negative: %v", instance.SlackWeight)
	}

	for index, route := range instance.Routes {
		if len(route.Stores) == 0 {
			return malformed(instance, "route %d has no stops", index)
		} else if !finite(route.Duration) || route.Duration < 0 {
			return malformed(instance, "route %d has an invalid duration: %v", index, route.Duration)
		}
	}

	if duplicates := lo.FindDuplicates(instance.Stores); len(duplicates) > 0 {
		return malformed(instance, "stores %v are required more than once", duplicates)
	}

	for _, store := range instance.Stores {
		if !lo.SomeBy(instance.Routes, func(route Route) bool { return route.Visits(store) }) {
			return malformed(instance, "store \"%v\" is not visited by any candidate route", store)
		}
	}

	return nil
}

// CheckDisjointRegions marks every instance that shares a required store with another instance of the same day.
// The returned map is keyed by position in instances.
func CheckDisjointRegions(instances []Instance) map[int]error {
	owners := make(map[[2]string][]int) // (day, store) -> instances requiring it
	for index, instance := range instances {
		for _, store := range lo.Uniq(instance.Stores) {
			key := [2]string{instance.Day, string(store)}
			owners[key] = append(owners[key], index)
		}
	}

	errs := make(map[int]error)
	for key, indices := range owners {
		if len(indices) < 2 {
			continue
		}
		for _, index := range indices {
			if _, ok := errs[index]; ok {
				continue
			}
			others := lo.FilterMap(indices, func(other int, _ int) (string, bool) {
				return instances[other].Region, other != index
			})
			errs[index] = malformed(instances[index], "store \"%v\" is also required by regions %v", key[1], others)
		}
	}
	return errs
}

func finite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}
