package model

import "math"

const (
	BaseHourlyRate    = 225.0
	OvertimeSurcharge = 50.0 // Extra rate for every hour beyond OvertimeThreshold
	OvertimeThreshold = 4.0
)

// Cost of operating a truck along a route of the given duration in hours
func Cost(duration float64) float64 {
	return BaseHourlyRate*duration + OvertimeSurcharge*math.Max(0, duration-OvertimeThreshold)
}
