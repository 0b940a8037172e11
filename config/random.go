package config

import (
	"cmp"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"strconv"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/pathfinder/grid"
)

// Layout selects how random obstacles are placed.
type Layout uint8

const (
	// LayoutUniform scatters obstacles uniformly.
	LayoutUniform Layout = iota
	// LayoutNoise places obstacles on the highest cells of a noise field,
	// which groups them into walls and blobs.
	LayoutNoise
)

// ErrUnknownLayout is returned for an unrecognised random.layout value.
var ErrUnknownLayout = errors.New("config: unknown layout")

func parseLayout(s string) (Layout, error) {
	switch s {
	case "", "uniform":
		return LayoutUniform, nil
	case "noise":
		return LayoutNoise, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownLayout, s)
	}
}

// RandomScenario builds a config from the embedded defaults and the 15
// command-line parameters. See ApplyRandomArgs.
func RandomScenario(args []string, rng *rand.Rand) (*Config, error) {
	cfg, err := Defaults()
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyRandomArgs(args, rng); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyRandomArgs sets the grid, simulation and population fields from the
// parameters n m xi yi xf yf n_scz n_obs tau v vmax k mu delta ro and fills
// in n_scz random zones and n_obs random obstacles. The other random
// settings (layout, max zone cost) are taken from c.
func (c *Config) ApplyRandomArgs(args []string, rng *rand.Rand) error {
	values := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return fmt.Errorf("%w: argument %d: %q is not a number", ErrMalformedScenario, i+1, a)
		}
		values[i] = v
	}

	nZones, nObs, err := c.applyParams(values)
	if err != nil {
		return err
	}
	c.Random.Zones = nZones
	c.Random.Obstacles = nObs

	if err := c.Randomize(rng); err != nil {
		return err
	}
	return c.Finalize()
}

// Randomize replaces the grid's zones and obstacles with random ones
// according to c.Random. Obstacles never cover the start or goal.
func (c *Config) Randomize(rng *rand.Rand) error {
	g := &c.Grid
	if g.Rows < 1 || g.Cols < 1 {
		return fmt.Errorf("%w: %dx%d", grid.ErrInvalidDimensions, g.Rows, g.Cols)
	}
	layout, err := parseLayout(c.Random.Layout)
	if err != nil {
		return err
	}

	maxCost := max(c.Random.MaxZoneCost, 1)
	g.Zones = make([]grid.Zone, 0, c.Random.Zones)
	for i := 0; i < c.Random.Zones; i++ {
		g.Zones = append(g.Zones, grid.Zone{
			From: c.randomCell(rng),
			To:   c.randomCell(rng),
			Cost: rng.Intn(maxCost) + 1,
		})
	}

	free := make([]grid.Cell, 0, g.Rows*g.Cols)
	for x := 1; x <= g.Rows; x++ {
		for y := 1; y <= g.Cols; y++ {
			cell := grid.Cell{X: x, Y: y}
			if cell != g.Start && cell != g.Goal {
				free = append(free, cell)
			}
		}
	}
	n := min(c.Random.Obstacles, len(free))

	switch layout {
	case LayoutNoise:
		g.Obstacles = c.noiseObstacles(free, n, rng.Int63())
	default:
		rng.Shuffle(len(free), func(i, j int) { free[i], free[j] = free[j], free[i] })
		g.Obstacles = slices.Clone(free[:n])
	}
	return nil
}

func (c *Config) randomCell(rng *rand.Rand) grid.Cell {
	return grid.Cell{X: rng.Intn(c.Grid.Rows) + 1, Y: rng.Intn(c.Grid.Cols) + 1}
}

// noiseObstacles picks the n free cells with the highest octave noise.
func (c *Config) noiseObstacles(free []grid.Cell, n int, seed int64) []grid.Cell {
	noise := opensimplex.NewNormalized(seed)
	freq := c.Random.NoiseFrequency
	if freq <= 0 {
		freq = 0.15
	}
	octaves := max(c.Random.NoiseOctaves, 1)

	type scored struct {
		cell  grid.Cell
		value float64
	}
	cells := make([]scored, len(free))
	for i, cell := range free {
		cells[i] = scored{cell, octaveNoise(noise, float64(cell.X), float64(cell.Y), octaves, freq, 0.5)}
	}
	slices.SortStableFunc(cells, func(a, b scored) int { return cmp.Compare(b.value, a.value) })

	out := make([]grid.Cell, n)
	for i := range out {
		out[i] = cells[i].cell
	}
	return out
}

// octaveNoise layers noise at doubling frequencies, normalized to [0, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
