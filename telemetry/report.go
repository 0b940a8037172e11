package telemetry

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/pthm-cable/pathfinder/grid"
)

// Route is a path of cells, printed as "[(x, y), (x, y)]".
type Route []grid.Cell

func (r Route) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, c := range r {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.String())
	}
	b.WriteByte(']')
	return b.String()
}

// MarshalCSV implements gocsv.TypeMarshaller.
func (r Route) MarshalCSV() (string, error) {
	return r.String(), nil
}

// WriteReport prints an observation block.
func WriteReport(w io.Writer, o Observation) error {
	hit := "no"
	if o.Complete {
		hit = "yes"
	}
	_, err := fmt.Fprintf(w, "Observation %d:\n"+
		"\t\tPresent time:\t\t\t%s\n"+
		"\t\tNumber of realized events:\t%s\n"+
		"\t\tPopulation size:\t\t%s\n"+
		"\t\tFinal point has been hit:\t%s\n"+
		"\t\tPath of the best fit:\t\t%s\n"+
		"\t\tBest path cost:\t\t\t%s\n\n",
		o.Index,
		humanize.Ftoa(o.Time),
		humanize.Comma(int64(o.Events)),
		humanize.Comma(int64(o.Size)),
		hit,
		o.BestPath,
		humanize.Ftoa(o.BestValue()),
	)
	return err
}

// WriteResult prints the final best route line.
func WriteResult(w io.Writer, r Result) error {
	label, value := "comfort", humanize.Ftoa(r.BestComfort)
	if r.Complete {
		label, value = "cost", humanize.Comma(int64(r.BestCost))
	}
	_, err := fmt.Fprintf(w, "Best fit individual:\t%s with %s: %s\n", r.BestPath, label, value)
	return err
}
