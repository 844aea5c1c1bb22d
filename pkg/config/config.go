package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/limaJavier/routeselection/pkg/mip"
	"github.com/limaJavier/routeselection/pkg/model"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	SolverBranchAndBound = "branchandbound"
	SolverCbc            = "cbc"

	envPrefix = "ROUTESELECT_"
)

type Config struct {
	MaxTrucks      int
	TargetDuration float64 // Hours
	SlackWeight    float64
	Solver         string
	Workers        int
	TimeLimit      time.Duration // Per instance, zero is unlimited
	NodeLimit      int
	Gap            float64
	CbcPath        string
	ServicePerStop float64 // Hours spent at every stop when durations are estimated
	Depot          string
	LogLevel       string
}

func Default() Config {
	return Config{
		MaxTrucks:      model.DefaultMaxTrucks,
		TargetDuration: model.DefaultTargetDuration,
		SlackWeight:    model.DefaultSlackWeight,
		Solver:         SolverBranchAndBound,
		Workers:        runtime.GOMAXPROCS(0),
		CbcPath:        mip.DefaultCbcPath,
		LogLevel:       zerolog.LevelInfoValue,
	}
}

// Load starts from the defaults, applies file when it is not empty and finally the ROUTESELECT_* environment,
// which may come from a .env file in the working directory
func Load(file string) (Config, error) {
	config := Default()
	values := make(map[string]any)
	raw := make(map[string]any)

	if file != "" {
		content, err := os.ReadFile(file)
		if err != nil {
			return Config{}, err
		}
		switch strings.ToLower(filepath.Ext(file)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(content, &raw)
		default:
			err = json.Unmarshal(content, &raw)
		}
		if err != nil {
			return Config{}, fmt.Errorf("cannot parse config %v: %w", file, err)
		}
	}
	for key, value := range raw {
		values[normalize(key)] = value
	}

	// A missing .env is not an error
	_ = godotenv.Load()
	for _, variable := range os.Environ() {
		key, value, _ := strings.Cut(variable, "=")
		if name, ok := strings.CutPrefix(key, envPrefix); ok {
			values[normalize(name)] = value
		}
	}

	if err := decode(values, &config); err != nil {
		return Config{}, err
	}
	return config, config.Validate()
}

// normalize folds maxTrucks, max_trucks and MAX_TRUCKS into one key
func normalize(key string) string {
	return strings.ReplaceAll(strings.ToLower(key), "_", "")
}

func decode(values map[string]any, config *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           config,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(values); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (config Config) Validate() error {
	if config.Solver != SolverBranchAndBound && config.Solver != SolverCbc {
		return fmt.Errorf("unknown solver \"%v\", expected %v or %v", config.Solver, SolverBranchAndBound, SolverCbc)
	} else if config.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", config.Workers)
	} else if config.TimeLimit < 0 || config.NodeLimit < 0 || config.Gap < 0 {
		return fmt.Errorf("solver limits cannot be negative")
	} else if config.ServicePerStop < 0 {
		return fmt.Errorf("service time per stop cannot be negative")
	} else if _, err := zerolog.ParseLevel(config.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

func (config Config) Parameters() model.Parameters {
	return model.Parameters{
		MaxTrucks:      config.MaxTrucks,
		TargetDuration: config.TargetDuration,
		SlackWeight:    config.SlackWeight,
	}
}

func (config Config) Options() mip.Options {
	return mip.Options{
		TimeLimit: config.TimeLimit,
		NodeLimit: config.NodeLimit,
		Gap:       config.Gap,
	}
}

func (config Config) NewSolver() mip.MIPSolver {
	if config.Solver == SolverCbc {
		return mip.NewCbcSolver(config.CbcPath, config.Options())
	}
	return mip.NewBranchAndBoundSolver(config.Options())
}
