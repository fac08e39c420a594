// Package matcher implements the per-trace map-matching pipeline: candidate
// selection, waypoint refinement, the shortest-path match driver and the
// quality evaluation that drives it, plus the multi-trace batch runner.
package matcher

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// webMercatorSRID is the only working CRS supported for distance and
// buffer computations.
const webMercatorSRID = 3857

type GeoprocessingParams struct {
	// ProjectedCRS is the SRID of the working metric CRS. All distances and
	// buffers are metres in this CRS.
	ProjectedCRS int `yaml:"projected_crs"`
}

type DataQualityParams struct {
	// MaxSpeed is the cutoff, in m/s, above which a segment is speeding.
	MaxSpeed float64 `yaml:"max_speed"`
	// MaxSpeedTime is the cumulative speeding budget in seconds.
	MaxSpeedTime float64 `yaml:"max_speed_time"`
	// MinimumPings is the lower bound on the conditioned ping count.
	MinimumPings int `yaml:"minimum_pings"`
	// MinimumCoverage is the lower bound, in metres, on the trace
	// bounding-box diagonal.
	MinimumCoverage float64 `yaml:"minimum_coverage"`
	// MaximumJitter is the maximum spatial spread, in metres, among
	// same-timestamp pings.
	MaximumJitter float64 `yaml:"maximum_jittery"`
}

type MapMatchingParams struct {
	// CostDiscount is the multiplier applied to candidate-link costs.
	CostDiscount float64 `yaml:"cost_discount"`
	// BufferSize is the candidate-search radius and coverage-buffer width
	// in metres.
	BufferSize float64 `yaml:"buffer_size"`
	// MinimumMatchQuality is the success threshold.
	MinimumMatchQuality float64 `yaml:"minimum_match_quality"`
	// MaximumWaypoints bounds the refinement iterations.
	MaximumWaypoints int `yaml:"maximum_waypoints"`
	// HeadingTolerance is the bearing alignment tolerance in degrees.
	HeadingTolerance float64 `yaml:"heading_tolerance"`
	// KeepPingClassification controls the unmatchable-ping report.
	KeepPingClassification bool `yaml:"keep_ping_classification"`
}

type Parameters struct {
	Geoprocessing GeoprocessingParams `yaml:"geoprocessing"`
	DataQuality   DataQualityParams   `yaml:"data_quality"`
	MapMatching   MapMatchingParams   `yaml:"map_matching"`
}

func DefaultParameters() Parameters {
	return Parameters{
		Geoprocessing: GeoprocessingParams{
			ProjectedCRS: webMercatorSRID,
		},
		DataQuality: DataQualityParams{
			MaxSpeed:        36.1,
			MaxSpeedTime:    120,
			MinimumPings:    15,
			MinimumCoverage: 500,
			MaximumJitter:   1,
		},
		MapMatching: MapMatchingParams{
			CostDiscount:        0.1,
			BufferSize:          20,
			MinimumMatchQuality: 0.99,
			MaximumWaypoints:    20,
			HeadingTolerance:    22.5,
		},
	}
}

func (p *Parameters) Validate() error {
	if p.Geoprocessing.ProjectedCRS != webMercatorSRID {
		return fmt.Errorf("unsupported projected_crs %d, only %d is supported",
			p.Geoprocessing.ProjectedCRS, webMercatorSRID)
	}
	if p.DataQuality.MinimumPings < 2 {
		return errors.New("minimum_pings must be at least 2")
	}
	if p.DataQuality.MaxSpeed <= 0 {
		return errors.New("max_speed must be positive")
	}
	if p.MapMatching.CostDiscount <= 0 || p.MapMatching.CostDiscount > 1 {
		return errors.New("cost_discount must be in (0, 1]")
	}
	if p.MapMatching.BufferSize < 0 {
		return errors.New("buffer_size must not be negative")
	}
	if p.MapMatching.MinimumMatchQuality <= 0 || p.MapMatching.MinimumMatchQuality > 1 {
		return errors.New("minimum_match_quality must be in (0, 1]")
	}
	if p.MapMatching.MaximumWaypoints < 0 {
		return errors.New("maximum_waypoints must not be negative")
	}
	if p.MapMatching.HeadingTolerance < 0 || p.MapMatching.HeadingTolerance >= 90 {
		return errors.New("heading_tolerance must be in [0, 90)")
	}
	return nil
}

// LoadParameters reads a YAML parameters file over the defaults. Unknown
// keys are a configuration error.
func LoadParameters(path string) (Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Parameters{}, fmt.Errorf("failed to read parameters file: %w", err)
	}
	return ParseParameters(data)
}

func ParseParameters(data []byte) (Parameters, error) {
	p := DefaultParameters()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Parameters{}, fmt.Errorf("failed to parse parameters: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Parameters{}, err
	}
	return p, nil
}
