package imagery

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// errNoData signals that the upstream has no usable raster for a specific
// date. It is not transient: retrying the same date cannot help, the
// fetcher should move on to the next fallback candidate.
var errNoData = eris.New("imagery: no data for date")

// UnavailableError reports that no usable raster could be obtained for any
// date within the request's fallback window. DatesTried lists exactly the
// dates attempted, in the order they were tried.
type UnavailableError struct {
	Request    Request
	DatesTried []time.Time
}

func (e *UnavailableError) Error() string {
	dates := make([]string, len(e.DatesTried))
	for i, d := range e.DatesTried {
		dates[i] = d.Format("2006-01-02")
	}
	return fmt.Sprintf("imagery unavailable: layer %s around %s (tried %s)",
		e.Request.Layer, e.Request.Date.Format("2006-01-02"), strings.Join(dates, ", "))
}
