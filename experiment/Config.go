// Package experiment implements the training experiment: configuration,
// construction of the learner, workers and environments, and the
// reporting done around a synchronous A2C run.
package experiment

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/samuelfneumann/portfolioa2c/a2c"
	"github.com/samuelfneumann/portfolioa2c/environment"
	"github.com/samuelfneumann/portfolioa2c/environment/portfolio"
	"github.com/samuelfneumann/portfolioa2c/initwfn"
	"github.com/samuelfneumann/portfolioa2c/policy"
	"github.com/samuelfneumann/portfolioa2c/solver"
)

// DateLayout is the layout of dates in configuration files
const DateLayout = "2006-01-02"

// Date is a calendar date which is written as YYYY-MM-DD in
// configuration files
type Date struct {
	time.Time
}

// NewDate returns the Date of the argument year, month and day in UTC
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD date
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, errors.Wrapf(err, "parseDate: %q", s)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// UnmarshalYAML implements the yaml.Unmarshaler interface
func (d *Date) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return errors.Errorf("unmarshalYAML: line %d: date must be a "+
			"scalar", node.Line)
	}
	date, err := ParseDate(node.Value)
	if err != nil {
		return err
	}
	*d = date
	return nil
}

// MarshalYAML implements the yaml.Marshaler interface
func (d Date) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	date, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = date
	return nil
}

// MarshalJSON implements the json.Marshaler interface
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Window is the interval of trading days [Start, End)
type Window struct {
	Start Date `yaml:"start" json:"start"`
	End   Date `yaml:"end" json:"end"`
}

// TradingDays returns the number of trading days in the Window
func (w Window) TradingDays() int {
	return environment.TradingDays(w.Start.Time, w.End.Time)
}

// Steps returns the number of environment steps in an episode over
// the Window. The first trading day is the reset day.
func (w Window) Steps() int {
	if days := w.TradingDays(); days > 1 {
		return days - 1
	}
	return 0
}

// Windows splits the trading days of w into n consecutive windows of
// nearly equal length. Earlier windows receive the extra days when the
// trading days do not divide evenly. Every window has at least two
// trading days.
func (w Window) Windows(n int) ([]Window, error) {
	if n < 1 {
		return nil, errors.Errorf("windows: number of windows must be "+
			"positive, have %d", n)
	}

	var days []time.Time
	for d := w.Start.Time; d.Before(w.End.Time); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			days = append(days, d)
		}
	}
	if len(days) < 2*n {
		return nil, errors.Errorf("windows: %v to %v has %d trading days, "+
			"need at least %d for %d windows", w.Start, w.End, len(days),
			2*n, n)
	}

	size, extra := len(days)/n, len(days)%n
	windows := make([]Window, n)
	offset := 0
	for i := range windows {
		length := size
		if i < extra {
			length++
		}

		end := w.End
		if i < n-1 {
			end = Date{days[offset+length]}
		}
		windows[i] = Window{Start: Date{days[offset]}, End: end}
		offset += length
	}
	return windows, nil
}

// CheckpointConfig describes where and how often parameters are saved
type CheckpointConfig struct {
	Dir  string `yaml:"dir" json:"dir"`
	Name string `yaml:"name" json:"name"`

	// Every is the number of rounds between checkpoints. If 0, only
	// the final parameters are saved.
	Every int `yaml:"every" json:"every"`
}

// OutputConfig describes the files a run reports to. Empty paths
// disable the corresponding output.
type OutputConfig struct {
	Journal string `yaml:"journal,omitempty" json:"journal,omitempty"`
	Plot    string `yaml:"plot,omitempty" json:"plot,omitempty"`
	Loss    string `yaml:"loss,omitempty" json:"loss,omitempty"`
}

// Config is the complete configuration of a training run
type Config struct {
	Seed    uint64 `yaml:"seed" json:"seed"`
	Workers int    `yaml:"workers" json:"workers"`
	TMax    int    `yaml:"t_max" json:"t_max"`

	// Train is split evenly among the workers
	Train Window `yaml:"train" json:"train"`

	// Validation, if set, is traded once with the trained policy and
	// compared to the benchmark
	Validation *Window `yaml:"validation,omitempty" json:"validation,omitempty"`

	Policy      policy.Config    `yaml:"policy" json:"policy"`
	Solver      *solver.Solver   `yaml:"solver" json:"solver"`
	Init        *initwfn.InitWFn `yaml:"init" json:"init"`
	Market      portfolio.Config `yaml:"market" json:"market"`
	Coordinator a2c.Config       `yaml:"coordinator" json:"coordinator"`
	Checkpoint  CheckpointConfig `yaml:"checkpoint" json:"checkpoint"`
	Output      OutputConfig     `yaml:"output" json:"output"`

	// Verbose logs every environment step of every worker
	Verbose bool `yaml:"verbose" json:"verbose"`
}

// DefaultConfig returns 16 workers sending segments of at most 5 steps,
// trained with Adam and a step size of 1e-3
func DefaultConfig() Config {
	adam, err := solver.NewDefaultAdam(1e-3, 1)
	if err != nil {
		panic(err)
	}
	init, err := initwfn.NewGlorotU(1.0)
	if err != nil {
		panic(err)
	}

	return Config{
		Seed:    1,
		Workers: 16,
		TMax:    5,
		Train: Window{
			Start: NewDate(2009, time.January, 1),
			End:   NewDate(2019, time.January, 1),
		},
		Validation: &Window{
			Start: NewDate(2019, time.January, 1),
			End:   NewDate(2021, time.January, 1),
		},
		Policy:      policy.DefaultConfig(),
		Solver:      adam,
		Init:        init,
		Market:      portfolio.DefaultConfig(),
		Coordinator: a2c.DefaultConfig(),
		Checkpoint: CheckpointConfig{
			Dir:  "checkpoints",
			Name: "a2c",
		},
		Output: OutputConfig{
			Journal: "runs.db",
			Plot:    "wealth.png",
		},
	}
}

// LoadConfig loads a Config from a YAML or JSON file and validates it.
// Fields missing from the file keep their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "loadConfig: read config file")
	}

	// Try YAML first, fall back to JSON
	cfg := DefaultConfig()
	if yerr := yaml.Unmarshal(data, &cfg); yerr != nil {
		cfg = DefaultConfig()
		if jerr := json.Unmarshal(data, &cfg); jerr != nil {
			return Config{}, errors.Errorf("loadConfig: parse config "+
				"(tried YAML and JSON): %v", yerr)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "loadConfig: invalid config")
	}
	return cfg, nil
}

// SaveToFile saves the Config as YAML if path has a .yaml or .yml
// extension, and as JSON otherwise
func (c Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return errors.Wrap(err, "saveToFile: marshal config")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "saveToFile: write config file")
	}
	return nil
}

// JSON returns the Config as a single line of JSON
func (c Config) JSON() string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return string(data)
}

// Validate returns an error describing why the Config is invalid, if
// it is
func (c Config) Validate() error {
	if c.Workers < 1 {
		return errors.Errorf("validate: workers must be positive, have %d",
			c.Workers)
	}
	if c.TMax < 1 {
		return errors.Errorf("validate: t_max must be positive, have %d",
			c.TMax)
	}
	if !c.Train.Start.Before(c.Train.End.Time) {
		return errors.Errorf("validate: train start %v must be before "+
			"end %v", c.Train.Start, c.Train.End)
	}
	if _, err := c.Train.Windows(c.Workers); err != nil {
		return errors.Wrap(err, "validate: train")
	}
	if c.Validation != nil && c.Validation.TradingDays() < 2 {
		return errors.Errorf("validate: validation window %v to %v must "+
			"contain at least 2 trading days", c.Validation.Start,
			c.Validation.End)
	}
	if c.Solver == nil {
		return errors.New("validate: solver is required")
	}
	if c.Init == nil {
		return errors.New("validate: init is required")
	}
	if err := c.Policy.Validate(); err != nil {
		return errors.Wrap(err, "validate: policy")
	}
	if err := c.Market.Validate(); err != nil {
		return errors.Wrap(err, "validate: market")
	}
	if c.Coordinator.WorkerTimeout < 0 {
		return errors.New("validate: worker_timeout must be non-negative")
	}
	if c.Checkpoint.Every < 0 {
		return errors.New("validate: checkpoint every must be non-negative")
	}
	if c.Checkpoint.Name == "" {
		return errors.New("validate: checkpoint name is required")
	}
	return nil
}
