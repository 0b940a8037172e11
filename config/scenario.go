package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pthm-cable/pathfinder/grid"
)

// ErrMalformedScenario is wrapped by scenario parse failures.
var ErrMalformedScenario = errors.New("config: malformed scenario")

// headerFields is the number of values on the scenario parameter line:
// n m xi yi xf yf n_scz n_obs tau v vmax k mu delta ro.
const headerFields = 15

// LoadScenario reads a scenario file. See ParseScenario.
func LoadScenario(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening scenario: %w", err)
	}
	defer f.Close()
	return ParseScenario(f)
}

// ParseScenario reads the plain-text scenario format:
//
//	n m xi yi xf yf n_scz n_obs tau v vmax k mu delta ro
//	Special Cost Zones:
//	x1 y1 x2 y2 cost      (n_scz lines)
//	Obstacles:
//	x y                   (n_obs lines)
//
// Lines that do not start with a number are treated as section headers and
// skipped. Values it does not carry come from the embedded defaults.
func ParseScenario(r io.Reader) (*Config, error) {
	values, err := scanNumbers(r)
	if err != nil {
		return nil, err
	}
	if len(values) < headerFields {
		return nil, fmt.Errorf("%w: parameter line has %d of %d values", ErrMalformedScenario, len(values), headerFields)
	}

	cfg, err := Defaults()
	if err != nil {
		return nil, err
	}
	nZones, nObs, err := cfg.applyParams(values[:headerFields])
	if err != nil {
		return nil, err
	}

	body := values[headerFields:]
	if want := 5*nZones + 2*nObs; len(body) != want {
		return nil, fmt.Errorf("%w: expected %d zone/obstacle values, got %d", ErrMalformedScenario, want, len(body))
	}
	ints := make([]int, len(body))
	for i, v := range body {
		n, err := toInt(v)
		if err != nil {
			return nil, fmt.Errorf("%w: zone/obstacle value %d: %w", ErrMalformedScenario, i+1, err)
		}
		ints[i] = n
	}

	for i := 0; i < nZones; i++ {
		z := ints[5*i:]
		cfg.Grid.Zones = append(cfg.Grid.Zones, grid.Zone{
			From: grid.Cell{X: z[0], Y: z[1]},
			To:   grid.Cell{X: z[2], Y: z[3]},
			Cost: z[4],
		})
	}
	obs := ints[5*nZones:]
	for i := 0; i < nObs; i++ {
		cfg.Grid.Obstacles = append(cfg.Grid.Obstacles, grid.Cell{X: obs[2*i], Y: obs[2*i+1]})
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyScenario copies the fields a scenario file carries (grid, horizon,
// initial population and population parameters) from sc into c.
func (c *Config) ApplyScenario(sc *Config) error {
	c.Grid = sc.Grid
	c.Grid.Zones = append([]grid.Zone(nil), sc.Grid.Zones...)
	c.Grid.Obstacles = append([]grid.Cell(nil), sc.Grid.Obstacles...)
	c.Simulation.Horizon = sc.Simulation.Horizon
	c.Simulation.Initial = sc.Simulation.Initial

	p := &c.Population
	p.MaxSize = sc.Population.MaxSize
	p.K = sc.Population.K
	p.Mu = sc.Population.Mu
	p.Delta = sc.Population.Delta
	p.Ro = sc.Population.Ro
	return c.Finalize()
}

// applyParams sets the grid, simulation and population fields from the 15
// parameter values and returns the zone and obstacle counts. Zones and
// obstacles are cleared.
func (c *Config) applyParams(values []float64) (nZones, nObs int, err error) {
	if len(values) != headerFields {
		return 0, 0, fmt.Errorf("%w: got %d parameters, want %d", ErrMalformedScenario, len(values), headerFields)
	}
	ints := make([]int, headerFields)
	for i, v := range values {
		// tau, mu, delta and ro may be fractional.
		if i == 8 || i >= 12 {
			continue
		}
		n, err := toInt(v)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: parameter %d: %w", ErrMalformedScenario, i+1, err)
		}
		ints[i] = n
	}

	nZones, nObs = ints[6], ints[7]
	if nZones < 0 || nObs < 0 {
		return 0, 0, fmt.Errorf("%w: negative zone or obstacle count", ErrMalformedScenario)
	}

	c.Grid = GridConfig{
		Rows:  ints[0],
		Cols:  ints[1],
		Start: grid.Cell{X: ints[2], Y: ints[3]},
		Goal:  grid.Cell{X: ints[4], Y: ints[5]},
	}
	c.Simulation.Horizon = values[8]
	c.Simulation.Initial = ints[9]
	c.Population.MaxSize = ints[10]
	c.Population.K = ints[11]
	c.Population.Mu = values[12]
	c.Population.Delta = values[13]
	c.Population.Ro = values[14]
	return nZones, nObs, nil
}

// scanNumbers returns every number in r, skipping header lines.
func scanNumbers(r io.Reader) ([]float64, error) {
	var values []float64
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if _, err := strconv.ParseFloat(fields[0], 64); err != nil {
			continue
		}
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %q is not a number", ErrMalformedScenario, line, f)
			}
			values = append(values, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return values, nil
}

func toInt(v float64) (int, error) {
	if v != math.Trunc(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%v is not an integer", v)
	}
	return int(v), nil
}

// WriteScenario writes the config in the plain-text scenario format read by
// ParseScenario.
func (c *Config) WriteScenario(w io.Writer) error {
	g := c.Grid
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d %d %d %d %d %d %d %d %s %d %d %d %s %s %s\n",
		g.Rows, g.Cols, g.Start.X, g.Start.Y, g.Goal.X, g.Goal.Y,
		len(g.Zones), len(g.Obstacles), formatFloat(c.Simulation.Horizon),
		c.Simulation.Initial, c.Population.MaxSize, c.Population.K,
		formatFloat(c.Population.Mu), formatFloat(c.Population.Delta), formatFloat(c.Population.Ro))
	fmt.Fprintln(bw, "Special Cost Zones:")
	for _, z := range g.Zones {
		fmt.Fprintf(bw, "%d %d %d %d %d\n", z.From.X, z.From.Y, z.To.X, z.To.Y, z.Cost)
	}
	fmt.Fprintln(bw, "Obstacles:")
	for _, o := range g.Obstacles {
		fmt.Fprintf(bw, "%d %d\n", o.X, o.Y)
	}
	return bw.Flush()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
