package imagery

import (
	"os"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ecolens/internal/geo"
)

// Provenance records what was actually served for a request: the served
// date may differ from the requested date after fallback, and downstream
// consumers audit data quality from exactly this record.
type Provenance struct {
	Layer         Layer     `json:"layer"`
	BBox          geo.BBox  `json:"bbox"`
	RequestedDate time.Time `json:"requested_date"`
	ServedDate    time.Time `json:"served_date"`
	ByteSize      int64     `json:"byte_size"`
	ContentType   string    `json:"content_type"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// DateFellBack reports whether the served date differs from the requested
// one.
func (p Provenance) DateFellBack() bool {
	return !p.ServedDate.Equal(p.RequestedDate)
}

// Artifact is a handle to a cached raster. The cache exclusively owns the
// payload bytes; holders read them on demand via Bytes rather than carrying
// a duplicate copy of a large raster around.
type Artifact struct {
	Provenance Provenance `json:"provenance"`
	Path       string     `json:"path"`
}

// Bytes reads the raster payload from the cache-owned file.
func (a *Artifact) Bytes() ([]byte, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "imagery: read artifact %s", a.Path)
	}
	return data, nil
}
