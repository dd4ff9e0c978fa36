package metrics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// RasterInfo summarises one raster touched by a job.
type RasterInfo struct {
	Path     string     `json:"path"`
	Width    int        `json:"width"`
	Height   int        `json:"height"`
	Bands    int        `json:"bands"`
	DataType string     `json:"data_type"`
	BBox     [4]float64 `json:"-"`
	Geometry string     `json:"geometry"`
}

// JobInfo is the record logged for every processed input file.
type JobInfo struct {
	ReqTime       string        `json:"req_time"`
	Duration      time.Duration `json:"duration"`
	Job           string        `json:"job"`
	Operation     string        `json:"operation"`
	Input         *RasterInfo   `json:"input"`
	Outputs       []*RasterInfo `json:"outputs"`
	ScaleFactor   int           `json:"scale_factor,omitempty"`
	TruncatedRows int           `json:"truncated_rows"`
	TruncatedCols int           `json:"truncated_cols"`
	MissingCells  int           `json:"missing_cells"`
	Error         string        `json:"error,omitempty"`
}

type MetricsCollector struct {
	Info   *JobInfo
	logger Logger
	start  time.Time
}

func NewMetricsCollector(logger Logger, job, operation string) *MetricsCollector {
	now := time.Now()
	return &MetricsCollector{
		Info: &JobInfo{
			ReqTime:   now.UTC().Format(time.RFC3339),
			Job:       job,
			Operation: operation,
			Input:     &RasterInfo{},
		},
		logger: logger,
		start:  now,
	}
}

// Log stamps the duration and hands the record to the logger.
func (m *MetricsCollector) Log(err error) {
	m.Info.Duration = time.Since(m.start)
	if err != nil {
		m.Info.Error = err.Error()
	}
	if m.logger != nil {
		m.logger.Log(m.Info)
	}
}

func (i *JobInfo) ToJSON() (string, error) {
	i.normaliseGeometry()

	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(i)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (i *JobInfo) normaliseGeometry() {
	rasters := append([]*RasterInfo{i.Input}, i.Outputs...)
	for _, r := range rasters {
		if r == nil || len(r.Geometry) > 0 {
			continue
		}
		if r.BBox == [4]float64{} {
			r.Geometry = "POLYGON EMPTY"
			continue
		}
		r.Geometry = BBoxToWkt(r.BBox)
	}
}

// BBoxToWkt renders [minX, minY, maxX, maxY] as a closed polygon.
func BBoxToWkt(b [4]float64) string {
	return fmt.Sprintf("POLYGON((%[1]v %[2]v, %[1]v %[4]v, %[3]v %[4]v, %[3]v %[2]v, %[1]v %[2]v))", b[0], b[1], b[2], b[3])
}
