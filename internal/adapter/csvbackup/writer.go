// Package csvbackup appends observations that could not be loaded to a local
// CSV file so they can be replayed later.
package csvbackup

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/couchcryptid/satellite-climate-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

var header = []string{"location_id", "observation_date", "lst", "ndvi", "data_source", "error"}

// Writer writes backup files under dir, one file per second of wall time.
type Writer struct {
	dir   string
	clock clockwork.Clock
	mu    sync.Mutex
}

func NewWriter(dir string, clock clockwork.Clock) *Writer {
	return &Writer{dir: dir, clock: clock}
}

// WriteBatch appends observations to observations_backup_<timestamp>.csv,
// writing the header when the file is new. cause is recorded on every row.
// It returns the file path.
func (w *Writer) WriteBatch(observations []domain.Observation, cause error) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}
	path := filepath.Join(w.dir, "observations_backup_"+w.clock.Now().Format("20060102_150405")+".csv")

	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("open backup file: %w", err)
	}
	defer f.Close()

	reason := ""
	if cause != nil {
		reason = cause.Error()
	}

	cw := csv.NewWriter(f)
	if isNew {
		if err := cw.Write(header); err != nil {
			return "", fmt.Errorf("write backup header: %w", err)
		}
	}
	for _, o := range observations {
		row := []string{o.LocationID, o.Date.String(), formatFloat(o.LST), formatFloat(o.NDVI), o.DataSource, reason}
		if err := cw.Write(row); err != nil {
			return "", fmt.Errorf("write backup row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("flush backup file: %w", err)
	}
	return path, nil
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
