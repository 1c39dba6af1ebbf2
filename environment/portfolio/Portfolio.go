// Package portfolio implements a synthetic stock market in which a
// portfolio of assets is traded once per trading day.
//
// Asset prices follow independent geometric Brownian motions. On each
// step the agent's action is scaled into a number of shares to buy
// (positive) or sell (negative) for each asset. Sells are executed
// before buys so that the proceeds can fund purchases, shares can never
// be shorted, and purchases are limited by the available cash.
package portfolio

import (
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/samuelfneumann/portfolioa2c/environment"
	"github.com/samuelfneumann/portfolioa2c/utils/floatutils"
	ts "github.com/samuelfneumann/portfolioa2c/timestep"
)

// ErrEpisodeOver is returned when Step is called after the last
// trading day of an episode, or before Reset
var ErrEpisodeOver = errors.New("episode is over")

// Config describes the market and the account that trades in it
type Config struct {
	Assets      int     `yaml:"assets" json:"assets"`
	InitialCash float64 `yaml:"initial_cash" json:"initial_cash"`

	// ActionScale is the number of shares traded per unit of action
	ActionScale float64 `yaml:"action_scale" json:"action_scale"`

	// Daily drift and volatility of the log price of every asset
	Drift      float64 `yaml:"drift" json:"drift"`
	Volatility float64 `yaml:"volatility" json:"volatility"`

	// Starting prices are drawn uniformly from [MinPrice, MaxPrice]
	MinPrice float64 `yaml:"min_price" json:"min_price"`
	MaxPrice float64 `yaml:"max_price" json:"max_price"`

	// TransactionCost is the fraction of each trade's value paid as fees
	TransactionCost float64 `yaml:"transaction_cost" json:"transaction_cost"`

	// RewardScale multiplies the daily change in portfolio value
	RewardScale float64 `yaml:"reward_scale" json:"reward_scale"`
}

// DefaultConfig returns the configuration of a 30 asset market with an
// initial balance of one million and 1000 shares per unit action.
func DefaultConfig() Config {
	return Config{
		Assets:          30,
		InitialCash:     1_000_000,
		ActionScale:     1000,
		Drift:           0.0003,
		Volatility:      0.015,
		MinPrice:        20,
		MaxPrice:        300,
		TransactionCost: 0.001,
		RewardScale:     1e-4,
	}
}

// Validate returns an error describing why a Config is invalid, if it is
func (c Config) Validate() error {
	if c.Assets <= 0 {
		return fmt.Errorf("validate: assets must be positive, have %v",
			c.Assets)
	}
	if c.InitialCash < 0 {
		return fmt.Errorf("validate: initial cash must be non-negative")
	}
	if c.ActionScale <= 0 {
		return fmt.Errorf("validate: action scale must be positive")
	}
	if c.Volatility < 0 {
		return fmt.Errorf("validate: volatility must be non-negative")
	}
	if c.MinPrice <= 0 || c.MaxPrice < c.MinPrice {
		return fmt.Errorf("validate: illegal starting price range [%v, %v]",
			c.MinPrice, c.MaxPrice)
	}
	if c.TransactionCost < 0 || c.TransactionCost >= 1 {
		return fmt.Errorf("validate: transaction cost must be in [0, 1)")
	}
	return nil
}

// Portfolio implements environment.Environment
type Portfolio struct {
	Config

	starter environment.Starter
	ender   environment.Ender
	noise   distuv.Normal

	cash     float64
	prices   []float64
	holdings []float64
	wealth   float64

	date      time.Time
	number    int
	last      bool
	benchmark []float64
}

// New returns a new Portfolio environment. The seed determines both
// the starting prices and the price paths of every episode.
func New(c Config, seed uint64) (*Portfolio, error) {
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "new")
	}

	bounds := make([]r1.Interval, c.Assets)
	for i := range bounds {
		bounds[i] = r1.Interval{Min: c.MinPrice, Max: c.MaxPrice}
	}

	return &Portfolio{
		Config:  c,
		starter: environment.NewUniformStarter(bounds, seed),
		noise: distuv.Normal{
			Mu:    0,
			Sigma: 1,
			Src:   rand.NewSource(seed + 1),
		},
		prices:   make([]float64, c.Assets),
		holdings: make([]float64, c.Assets),
		last:     true,
	}, nil
}

// Reset starts a new episode trading over the weekdays in [start, end)
func (p *Portfolio) Reset(start, end time.Time) (ts.TimeStep, error) {
	first := start
	for first.Weekday() == time.Saturday || first.Weekday() == time.Sunday {
		first = first.AddDate(0, 0, 1)
	}
	if days := environment.TradingDays(first, end); days < 2 {
		return ts.TimeStep{}, fmt.Errorf("reset: interval [%v, %v) must "+
			"contain at least 2 trading days, has %v",
			start.Format("2006-01-02"), end.Format("2006-01-02"), days)
	}

	copy(p.prices, p.starter.Start().(*mat.VecDense).RawVector().Data)
	for i := range p.holdings {
		p.holdings[i] = 0
	}
	p.cash = p.InitialCash
	p.wealth = p.value()
	p.date = first
	p.number = 0
	p.last = false
	p.ender = environment.NewDateLimit(end)
	p.benchmark = []float64{floats.Sum(p.prices)}

	return ts.New(ts.First, 0, p.observation(), p.number, p.date,
		p.wealth), nil
}

// Step trades according to the argument action then advances the
// market to the next trading day
func (p *Portfolio) Step(action *mat.VecDense) (ts.TimeStep, error) {
	if p.last {
		return ts.TimeStep{}, errors.Wrap(ErrEpisodeOver, "step")
	}
	if action.Len() != p.Assets {
		return ts.TimeStep{}, fmt.Errorf("step: illegal action length "+
			"\n\twant(%v)\n\thave(%v)", p.Assets, action.Len())
	}

	p.trade(action.RawVector().Data)
	p.advance()

	wealth := p.value()
	reward := (wealth - p.wealth) * p.RewardScale
	p.wealth = wealth
	p.number++

	step := ts.New(ts.Mid, reward, p.observation(), p.number, p.date,
		p.wealth)
	p.last = p.ender.End(&step)

	return step, nil
}

// trade sells then buys shares according to action. Sells are limited
// to the shares held and buys to the shares the cash can pay for.
func (p *Portfolio) trade(action []float64) {
	for i, a := range action {
		sell := r1.Interval{Min: -p.holdings[i], Max: 0}
		shares := floatutils.ClipInterval(math.Round(a*p.ActionScale), sell)
		if shares == 0 || math.IsNaN(shares) {
			continue
		}
		p.holdings[i] += shares
		p.cash -= shares * p.prices[i] * (1 - p.TransactionCost)
	}

	for i, a := range action {
		cost := p.prices[i] * (1 + p.TransactionCost)
		affordable := math.Floor(p.cash / cost)
		bought := floatutils.Clip(math.Round(a*p.ActionScale), 0, affordable)
		if bought <= 0 || math.IsNaN(bought) {
			continue
		}
		p.holdings[i] += bought
		p.cash -= bought * cost
	}
}

// advance moves every asset price forward by one trading day
func (p *Portfolio) advance() {
	drift := p.Drift - 0.5*p.Volatility*p.Volatility
	for i := range p.prices {
		p.prices[i] *= math.Exp(drift + p.Volatility*p.noise.Rand())
	}
	p.date = environment.NextTradingDay(p.date)
	p.benchmark = append(p.benchmark, floats.Sum(p.prices))
}

// value returns the total value of cash and holdings
func (p *Portfolio) value() float64 {
	return p.cash + floats.Dot(p.prices, p.holdings)
}

// observation returns the current observation vector
func (p *Portfolio) observation() *mat.VecDense {
	obs := make([]float64, 0, p.StateShape())
	obs = append(obs, p.cash)
	obs = append(obs, p.prices...)
	obs = append(obs, p.holdings...)
	return mat.NewVecDense(len(obs), obs)
}

// StateShape returns the length of observation vectors
func (p *Portfolio) StateShape() int {
	return 1 + 2*p.Assets
}

// ActionCount returns the length of action vectors
func (p *Portfolio) ActionCount() int {
	return p.Assets
}

// BenchmarkSeries returns the sum of asset prices, an equal-share index,
// on each trading day of the episode so far
func (p *Portfolio) BenchmarkSeries() []float64 {
	out := make([]float64, len(p.benchmark))
	copy(out, p.benchmark)
	return out
}

// Wealth returns the current total value of the portfolio
func (p *Portfolio) Wealth() float64 {
	return p.wealth
}
