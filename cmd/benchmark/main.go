package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/exec"
	"time"

	"github.com/limaJavier/routeselection/pkg/config"
	"github.com/limaJavier/routeselection/pkg/mip"
	"github.com/limaJavier/routeselection/pkg/model"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	resultsFile   = "benchmark_results.csv"
	seed          = 2024
	instanceLimit = 2 * time.Minute
	MB            = 1024 * 1024
)

type TestMetadata struct {
	Name     string
	Routes   int
	Stores   int
	Instance model.Instance
}

type BenchmarkResult struct {
	Solver    string
	Test      TestMetadata
	Status    mip.Status
	Objective float64
	Nodes     int
	Duration  int64 // Milliseconds
	Verified  bool
}

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	tests := getTests(rand.New(rand.NewSource(seed)))
	solvers := getSolvers()
	results := make([]BenchmarkResult, 0, len(tests)*len(solvers))

	for _, test := range tests {
		for _, solver := range solvers {
			log.Info().Str("test", test.Name).Str("solver", solver).Msg("benchmarking")
			results = append(results, measure(solver, test))
		}
	}

	file, err := os.Create(resultsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot create CSV file")
	}
	defer file.Close()

	if err := toCsv(file, hostHeader(), results); err != nil {
		log.Fatal().Err(err).Msg("cannot write benchmark results")
	}
}

// getTests builds instances of increasing size; each has a planted partition so a feasible selection exists
func getTests(random *rand.Rand) []TestMetadata {
	tests := make([]TestMetadata, 0)
	for _, size := range []struct{ stores, routes int }{{10, 30}, {20, 80}, {40, 200}, {60, 400}, {80, 800}} {
		instance := generateInstance(random, size.stores, size.routes)
		tests = append(tests, TestMetadata{
			Name:     fmt.Sprintf("random_%d_%d", size.stores, size.routes),
			Routes:   len(instance.Routes),
			Stores:   len(instance.Stores),
			Instance: instance,
		})
	}
	return tests
}

func generateInstance(random *rand.Rand, storeCount, routeCount int) model.Instance {
	stores := lo.Map(lo.Range(storeCount), func(index int, _ int) model.Store {
		return model.Store(fmt.Sprintf("S%d", index))
	})
	randomDuration := func(stops int) float64 {
		return float64(stops)*0.5 + random.Float64()*3
	}

	routes := make([]model.Route, 0, routeCount)
	shuffled := append([]model.Store{}, stores...)
	random.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	for start := 0; start < len(shuffled); {
		end := min(len(shuffled), start+1+random.Intn(4))
		routes = append(routes, model.Route{Stores: shuffled[start:end], Duration: randomDuration(end - start)})
		start = end
	}
	for len(routes) < routeCount {
		stops := lo.Map(random.Perm(storeCount)[:min(storeCount, 1+random.Intn(4))], func(index int, _ int) model.Store {
			return stores[index]
		})
		routes = append(routes, model.Route{Stores: stops, Duration: randomDuration(len(stops))})
	}
	random.Shuffle(len(routes), func(i, j int) { routes[i], routes[j] = routes[j], routes[i] })

	return model.NewInstance("Benchmark", fmt.Sprintf("R%d", storeCount), routes, stores)
}

func getSolvers() []string {
	solvers := []string{config.SolverBranchAndBound}
	if _, err := exec.LookPath(mip.DefaultCbcPath); err == nil {
		solvers = append(solvers, config.SolverCbc)
	} else {
		log.Warn().Msg("cbc was not found in PATH, benchmarking branch and bound only")
	}
	return solvers
}

func measure(solver string, test TestMetadata) BenchmarkResult {
	configuration := config.Default()
	configuration.Solver = solver
	configuration.TimeLimit = instanceLimit
	selector := model.NewMIPSelector(configuration.NewSolver())

	start := time.Now()
	solution, err := selector.Select(context.Background(), test.Instance)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		log.Fatal().Err(err).Str("test", test.Name).Str("solver", solver).Msg("an error occurred during the selection")
	}

	return BenchmarkResult{
		Solver:    solver,
		Test:      test,
		Status:    solution.Status,
		Objective: solution.Objective,
		Nodes:     solution.Nodes,
		Duration:  duration,
		Verified:  !solution.Optimal || selector.Verify(solution, test.Instance),
	}
}

func hostHeader() []string {
	header := make([]string, 0, 3)
	if hostStat, err := host.Info(); err == nil {
		header = append(header, fmt.Sprintf("# host: %v %v %v", hostStat.Platform, hostStat.PlatformVersion, hostStat.KernelArch))
	}
	if cpuStat, err := cpu.Info(); err == nil && len(cpuStat) > 0 {
		header = append(header, fmt.Sprintf("# cpu: %v x%d", cpuStat[0].ModelName, len(cpuStat)))
	}
	if vmStat, err := mem.VirtualMemory(); err == nil {
		header = append(header, fmt.Sprintf("# memory: %d MB", vmStat.Total/MB))
	}
	return header
}

func toCsv(out io.Writer, comments []string, results []BenchmarkResult) error {
	for _, comment := range comments {
		if _, err := fmt.Fprintln(out, comment); err != nil {
			return err
		}
	}

	writer := csv.NewWriter(out)
	header := []string{"Test", "Solver", "Routes", "Stores", "Status", "Objective", "Nodes", "Duration(ms)", "Verified"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("cannot write CSV header: %w", err)
	}

	for _, result := range results {
		record := []string{
			result.Test.Name,
			result.Solver,
			fmt.Sprintf("%d", result.Test.Routes),
			fmt.Sprintf("%d", result.Test.Stores),
			result.Status.String(),
			fmt.Sprintf("%.2f", result.Objective),
			fmt.Sprintf("%d", result.Nodes),
			fmt.Sprintf("%d", result.Duration),
			fmt.Sprintf("%v", result.Verified),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("cannot write CSV record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
