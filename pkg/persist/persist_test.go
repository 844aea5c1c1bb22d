package persist

import (
	"path/filepath"
	"testing"

	"github.com/limaJavier/routeselection/pkg/mip"
	"github.com/limaJavier/routeselection/pkg/model"
	"github.com/limaJavier/routeselection/pkg/planner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePlan() planner.Plan {
	north := model.NewInstance("Weekday", "North", nil, []model.Store{"Albany", "New Lynn"})
	east := model.NewInstance("Weekday", "East", nil, nil)
	saturday := model.NewInstance("Saturday", "North", nil, []model.Store{"Albany"})

	return planner.Plan{
		RunID: "run",
		Results: []planner.Result{
			{
				Instance: north,
				Solution: model.Solution{
					Day:    "Weekday",
					Region: "North",
					Routes: []model.Route{
						{Stores: []model.Store{"Albany"}, Duration: 1.5},
						{Stores: []model.Store{"New Lynn"}, Duration: 2},
					},
					Indices:   []int{0, 3},
					Optimal:   true,
					Status:    mip.Optimal,
					Objective: 787.5,
				},
			},
			{
				Instance: east,
				Solution: model.Solution{Day: "Weekday", Region: "East"},
				Err:      &model.MalformedInstanceError{Day: "Weekday", Region: "East", Reason: "no candidate routes"},
			},
			{
				Instance: saturday,
				Solution: model.Solution{Day: "Saturday", Region: "North", Status: mip.Infeasible, Routes: []model.Route{}},
			},
		},
	}
}

func TestFromPlan(t *testing.T) {
	document := FromPlan(samplePlan())

	assert.Equal(t, "run", document.RunID)
	require.Len(t, document.Days, 2)

	north := document.Days["Weekday"]["North"]
	assert.Equal(t, [][]string{{"Albany"}, {"New Lynn"}}, north.Routes)
	assert.Equal(t, []float64{1.5, 2}, north.Durations)
	assert.True(t, north.Optimal)
	assert.Equal(t, "optimal", north.Status)
	assert.Empty(t, north.Error)

	east := document.Days["Weekday"]["East"]
	assert.Equal(t, "malformed", east.Status)
	assert.Contains(t, east.Error, "no candidate routes")
	assert.False(t, east.Optimal)

	assert.Equal(t, "infeasible", document.Days["Saturday"]["North"].Status)
}

func TestSaveAndLoad(t *testing.T) {
	for _, name := range []string{"plan.json", "plan.yaml", "plan.yml"} {
		t.Run(name, func(t *testing.T) {
			//** Arrange
			path := filepath.Join(t.TempDir(), name)
			document := FromPlan(samplePlan())

			//** Act
			require.NoError(t, Save(path, document))
			loaded, err := Load(path)

			//** Assert
			require.NoError(t, err)
			assert.Equal(t, document.RunID, loaded.RunID)
			assert.Equal(t, document.Days["Weekday"]["North"], loaded.Days["Weekday"]["North"])

			routes, ok := loaded.Routes("Weekday", "North")
			assert.True(t, ok)
			assert.Equal(t, [][]model.Store{{"Albany"}, {"New Lynn"}}, routes)

			_, ok = loaded.Routes("Sunday", "North")
			assert.False(t, ok)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
