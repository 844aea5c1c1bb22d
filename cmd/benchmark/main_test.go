package main

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/limaJavier/routeselection/pkg/config"
	"github.com/limaJavier/routeselection/pkg/mip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateInstanceIsFeasible(t *testing.T) {
	random := rand.New(rand.NewSource(1))
	for range 5 {
		//** Arrange
		instance := generateInstance(random, 12, 30)
		require.NoError(t, instance.Validate())
		assert.Len(t, instance.Routes, 30)

		//** Act
		result := measure(config.SolverBranchAndBound, TestMetadata{Name: "test", Instance: instance})

		//** Assert
		assert.Equal(t, mip.Optimal, result.Status)
		assert.True(t, result.Verified)
	}
}

func TestToCsv(t *testing.T) {
	var out bytes.Buffer
	results := []BenchmarkResult{{
		Solver:    config.SolverBranchAndBound,
		Test:      TestMetadata{Name: "random_10_30", Routes: 30, Stores: 10},
		Status:    mip.Optimal,
		Objective: 2250,
		Nodes:     7,
		Duration:  12,
		Verified:  true,
	}}

	require.NoError(t, toCsv(&out, []string{"# host: test"}, results))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "# host: test", lines[0])
	assert.Equal(t, "Test,Solver,Routes,Stores,Status,Objective,Nodes,Duration(ms),Verified", lines[1])
	assert.Equal(t, "random_10_30,branchandbound,30,10,optimal,2250.00,7,12,true", lines[2])
}
