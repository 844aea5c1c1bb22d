package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/limaJavier/routeselection/pkg/config"
	"github.com/limaJavier/routeselection/pkg/data"
	"github.com/limaJavier/routeselection/pkg/metrics"
	"github.com/limaJavier/routeselection/pkg/mip"
	"github.com/limaJavier/routeselection/pkg/model"
	"github.com/limaJavier/routeselection/pkg/persist"
	"github.com/limaJavier/routeselection/pkg/planner"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const (
	exitOptimal    = 0
	exitNotOptimal = 10
	exitInfeasible = 20
)

var validSolvers = []string{config.SolverBranchAndBound, config.SolverCbc}

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	// Define arguments
	filePathPtr := flag.String("file", "", "Path to the input file")
	outFilePathPtr := flag.String("out", "", "Path to the file where the selected routes will be written (.json, .yaml or .yml); if empty, they'll be written into the Standard Output")
	configPathPtr := flag.String("config", "", "Path to a JSON or YAML configuration file")
	solverPtr := flag.String("solver", "", "MIP backend to use. Allowed values are: \"branchandbound\" and \"cbc\", where the configuration decides by default")
	lpDirectoryPtr := flag.String("lp", "", "Directory where the model of every instance will be written in LP format")
	durationsPathPtr := flag.String("durations", "", "CSV travel duration matrix (seconds) used to estimate routes without a duration")
	groupsPathPtr := flag.String("groups", "", "CSV with one column of stores per region, replacing the regions of the input file")
	closedPtr := flag.String("closed", "", "Comma separated stores that are closed and must not be required")
	metricsAddressPtr := flag.String("metrics", "", "Address where Prometheus metrics are served during the run, e.g. :9090")
	flag.Parse()

	// Validate arguments
	solverStr := strings.ToLower(*solverPtr)
	if *filePathPtr == "" {
		log.Fatal().Msg("an input file must be specified")
	} else if solverStr != "" && !slices.Contains(validSolvers, solverStr) {
		log.Fatal().Msgf("%v is not a valid solver", solverStr)
	}

	// Load configuration
	configuration, err := config.Load(*configPathPtr)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load configuration")
	}
	if solverStr != "" {
		configuration.Solver = solverStr
	}
	level, _ := zerolog.ParseLevel(configuration.LogLevel)
	zerolog.SetGlobalLevel(level)

	// Extract input
	instances, err := readInstances(configuration, *filePathPtr, *groupsPathPtr, *durationsPathPtr, *closedPtr)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot read input")
	}

	if *lpDirectoryPtr != "" {
		exportModels(instances, *lpDirectoryPtr)
	}
	if *metricsAddressPtr != "" {
		serveMetrics(*metricsAddressPtr)
	}

	// Select routes
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	selector := model.NewMIPSelector(configuration.NewSolver())
	plan, err := planner.New(selector, configuration.Workers, 0).Solve(ctx, instances)
	if err != nil {
		log.Error().Err(err).Msg("batch did not finish")
	}

	// Write output
	document := persist.FromPlan(plan)
	if *outFilePathPtr == "" {
		content, err := json.MarshalIndent(document, "", "  ")
		if err != nil {
			log.Fatal().Err(err).Msg("an error occurred while building output json")
		}
		fmt.Println(string(content))
	} else if err := persist.Save(*outFilePathPtr, document); err != nil {
		log.Fatal().Err(err).Msg("an error occurred while writing to the output file")
	}

	stop()
	os.Exit(exitCode(plan))
}

func readInstances(configuration config.Config, file, groupsFile, durationsFile, closed string) ([]model.Instance, error) {
	rawInput, err := model.InputFromJson(file)
	if err != nil {
		return nil, fmt.Errorf("cannot parse input file: %w", err)
	}

	groups := lo.MapValues(rawInput.Regions, func(stores []string, _ string) []model.Store {
		return lo.Map(stores, func(store string, _ int) model.Store { return model.Store(store) })
	})
	if groupsFile != "" {
		if groups, err = data.ReadLocationGroups(groupsFile); err != nil {
			return nil, err
		}
	}
	if closed != "" {
		closedStores := lo.Map(strings.Split(closed, ","), func(store string, _ int) model.Store {
			return model.Store(strings.TrimSpace(store))
		})
		groups = model.CloseStores(groups, closedStores)
	}
	rawInput.Regions = lo.MapValues(groups, func(stores []model.Store, _ string) []string {
		return lo.Map(stores, func(store model.Store, _ int) string { return string(store) })
	})

	var estimate model.DurationEstimator
	if durationsFile != "" {
		durations, err := data.ReadTravelDurations(durationsFile)
		if err != nil {
			return nil, err
		}
		estimate = durations.Estimator(model.Store(configuration.Depot), configuration.ServicePerStop)
	}

	return model.ProcessRawInput(rawInput, configuration.Parameters(), estimate)
}

func exportModels(instances []model.Instance, directory string) {
	if err := os.MkdirAll(directory, 0777); err != nil {
		log.Fatal().Err(err).Msg("cannot create LP directory")
	}
	for _, instance := range instances {
		lp, err := model.ExportLP(instance)
		if err != nil {
			log.Warn().Str("instance", instance.Name()).Err(err).Msg("cannot export model")
			continue
		}
		file := filepath.Join(directory, instance.Name()+".lp")
		if err := os.WriteFile(file, []byte(lp), 0666); err != nil {
			log.Fatal().Err(err).Msgf("cannot write %v", file)
		}
	}
}

func serveMetrics(address string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	go func() {
		if err := http.ListenAndServe(address, mux); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	log.Info().Str("address", address).Msg("serving metrics")
}

// exitCode is 20 when an instance was infeasible or malformed, 10 when one was not solved to optimality and 0 otherwise
func exitCode(plan planner.Plan) int {
	if plan.Count(mip.Infeasible) > 0 || plan.MalformedCount() > 0 {
		return exitInfeasible
	} else if !plan.AllOptimal() {
		return exitNotOptimal
	}
	return exitOptimal
}
