package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/cybot.radar/internal/perception/geometry"
	"github.com/banshee-data/cybot.radar/internal/perception/pipeline"
	"github.com/banshee-data/cybot.radar/internal/perception/pose"
	"github.com/banshee-data/cybot.radar/internal/perception/segment"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for perception tuning.
// Every field is optional; the Get* methods supply defaults for anything
// the JSON file leaves out.
type TuningConfig struct {
	// Segmentation params
	MinStrength        *int     `json:"min_strength,omitempty"`
	RiseThreshold      *int     `json:"rise_threshold,omitempty"`
	DropThreshold      *int     `json:"drop_threshold,omitempty"`
	MaxRangeCM         *float64 `json:"max_range_cm,omitempty"`
	MinSegmentPoints   *int     `json:"min_segment_points,omitempty"`
	MinAngularWidthDeg *float64 `json:"min_angular_width_deg,omitempty"`

	// Geometry and pose params
	MapScale          *float64 `json:"map_scale,omitempty"`
	SensorOffsetCM    *float64 `json:"sensor_offset_cm,omitempty"`
	ForwardBearingDeg *float64 `json:"forward_bearing_deg,omitempty"`
	InitialHeadingDeg *float64 `json:"initial_heading_deg,omitempty"`

	// Bump marker placement, in map units and degrees off the heading
	BumpOffset   *float64 `json:"bump_offset,omitempty"`
	BumpAngleDeg *float64 `json:"bump_angle_deg,omitempty"`

	// Plumbing
	QueueCapacity *int    `json:"queue_capacity,omitempty"`
	DialTimeout   *string `json:"dial_timeout,omitempty"` // duration string like "5s"
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field set to the
// value its getter would fall back to.
func DefaultTuningConfig() *TuningConfig {
	e := EmptyTuningConfig()
	return &TuningConfig{
		MinStrength:        ptrInt(e.GetMinStrength()),
		RiseThreshold:      ptrInt(e.GetRiseThreshold()),
		DropThreshold:      ptrInt(e.GetDropThreshold()),
		MaxRangeCM:         ptrFloat64(e.GetMaxRangeCM()),
		MinSegmentPoints:   ptrInt(e.GetMinSegmentPoints()),
		MinAngularWidthDeg: ptrFloat64(e.GetMinAngularWidthDeg()),
		MapScale:           ptrFloat64(e.GetMapScale()),
		SensorOffsetCM:     ptrFloat64(e.GetSensorOffsetCM()),
		ForwardBearingDeg:  ptrFloat64(e.GetForwardBearingDeg()),
		InitialHeadingDeg:  ptrFloat64(e.GetInitialHeadingDeg()),
		BumpOffset:         ptrFloat64(e.GetBumpOffset()),
		BumpAngleDeg:       ptrFloat64(e.GetBumpAngleDeg()),
		QueueCapacity:      ptrInt(e.GetQueueCapacity()),
		DialTimeout:        ptrString(e.GetDialTimeout().String()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/perception/pipeline/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	for name, v := range map[string]*int{
		"min_strength":   c.MinStrength,
		"rise_threshold": c.RiseThreshold,
		"drop_threshold": c.DropThreshold,
	} {
		if v != nil && (*v < 0 || int64(*v) > math.MaxUint32) {
			return fmt.Errorf("%s must be between 0 and %d, got %d", name, uint32(math.MaxUint32), *v)
		}
	}

	if c.MinSegmentPoints != nil && *c.MinSegmentPoints < 1 {
		return fmt.Errorf("min_segment_points must be at least 1, got %d", *c.MinSegmentPoints)
	}

	for name, v := range map[string]*float64{
		"max_range_cm": c.MaxRangeCM,
		"map_scale":    c.MapScale,
		"bump_offset":  c.BumpOffset,
	} {
		if v != nil && !(*v > 0) {
			return fmt.Errorf("%s must be positive, got %f", name, *v)
		}
	}

	if c.MinAngularWidthDeg != nil && (*c.MinAngularWidthDeg < 0 || *c.MinAngularWidthDeg > 180) {
		return fmt.Errorf("min_angular_width_deg must be between 0 and 180, got %f", *c.MinAngularWidthDeg)
	}

	if c.ForwardBearingDeg != nil && (*c.ForwardBearingDeg < 0 || *c.ForwardBearingDeg > 180) {
		return fmt.Errorf("forward_bearing_deg must be between 0 and 180, got %f", *c.ForwardBearingDeg)
	}

	for name, v := range map[string]*float64{
		"sensor_offset_cm":    c.SensorOffsetCM,
		"initial_heading_deg": c.InitialHeadingDeg,
		"bump_angle_deg":      c.BumpAngleDeg,
	} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return fmt.Errorf("%s must be finite", name)
		}
	}

	if c.QueueCapacity != nil && *c.QueueCapacity < 1 {
		return fmt.Errorf("queue_capacity must be at least 1, got %d", *c.QueueCapacity)
	}

	// Validate DialTimeout can be parsed if set
	if c.DialTimeout != nil && *c.DialTimeout != "" {
		if _, err := time.ParseDuration(*c.DialTimeout); err != nil {
			return fmt.Errorf("invalid dial_timeout '%s': %w", *c.DialTimeout, err)
		}
	}

	return nil
}

// GetMinStrength returns the min_strength value or the default.
func (c *TuningConfig) GetMinStrength() int {
	if c.MinStrength == nil {
		return 750
	}
	return *c.MinStrength
}

// GetRiseThreshold returns the rise_threshold value or the default.
func (c *TuningConfig) GetRiseThreshold() int {
	if c.RiseThreshold == nil {
		return 300
	}
	return *c.RiseThreshold
}

// GetDropThreshold returns the drop_threshold value or the default.
func (c *TuningConfig) GetDropThreshold() int {
	if c.DropThreshold == nil {
		return 250
	}
	return *c.DropThreshold
}

// GetMaxRangeCM returns the max_range_cm value or the default.
func (c *TuningConfig) GetMaxRangeCM() float64 {
	if c.MaxRangeCM == nil {
		return 250
	}
	return *c.MaxRangeCM
}

// GetMinSegmentPoints returns the min_segment_points value or the default.
func (c *TuningConfig) GetMinSegmentPoints() int {
	if c.MinSegmentPoints == nil {
		return 3
	}
	return *c.MinSegmentPoints
}

// GetMinAngularWidthDeg returns the min_angular_width_deg value or the default.
func (c *TuningConfig) GetMinAngularWidthDeg() float64 {
	if c.MinAngularWidthDeg == nil {
		return 6
	}
	return *c.MinAngularWidthDeg
}

// GetMapScale returns the map_scale value or the default.
func (c *TuningConfig) GetMapScale() float64 {
	if c.MapScale == nil {
		return 2.0
	}
	return *c.MapScale
}

// GetSensorOffsetCM returns the sensor_offset_cm value or the default.
func (c *TuningConfig) GetSensorOffsetCM() float64 {
	if c.SensorOffsetCM == nil {
		return 5
	}
	return *c.SensorOffsetCM
}

// GetForwardBearingDeg returns the forward_bearing_deg value or the default.
func (c *TuningConfig) GetForwardBearingDeg() float64 {
	if c.ForwardBearingDeg == nil {
		return 90
	}
	return *c.ForwardBearingDeg
}

// GetInitialHeadingDeg returns the initial_heading_deg value or the default.
func (c *TuningConfig) GetInitialHeadingDeg() float64 {
	if c.InitialHeadingDeg == nil {
		return pose.DefaultHeadingDeg
	}
	return *c.InitialHeadingDeg
}

// GetBumpOffset returns the bump_offset value or the default.
func (c *TuningConfig) GetBumpOffset() float64 {
	if c.BumpOffset == nil {
		return 15
	}
	return *c.BumpOffset
}

// GetBumpAngleDeg returns the bump_angle_deg value or the default.
func (c *TuningConfig) GetBumpAngleDeg() float64 {
	if c.BumpAngleDeg == nil {
		return 45
	}
	return *c.BumpAngleDeg
}

// GetQueueCapacity returns the queue_capacity value or the default.
func (c *TuningConfig) GetQueueCapacity() int {
	if c.QueueCapacity == nil {
		return 512
	}
	return *c.QueueCapacity
}

// GetDialTimeout parses and returns the DialTimeout as a time.Duration.
func (c *TuningConfig) GetDialTimeout() time.Duration {
	if c.DialTimeout == nil || *c.DialTimeout == "" {
		return 5 * time.Second // default
	}
	d, err := time.ParseDuration(*c.DialTimeout)
	if err != nil {
		return 5 * time.Second // default on parse error
	}
	return d
}

// SegmentParams builds the segmentation parameters.
func (c *TuningConfig) SegmentParams() segment.Params {
	return segment.Params{
		MinStrength:        uint32(c.GetMinStrength()),
		RiseThreshold:      uint32(c.GetRiseThreshold()),
		DropThreshold:      uint32(c.GetDropThreshold()),
		MaxRangeCM:         c.GetMaxRangeCM(),
		MinSegmentPoints:   c.GetMinSegmentPoints(),
		MinAngularWidthDeg: c.GetMinAngularWidthDeg(),
	}
}

// GeometryParams builds the geometry resolver parameters. Range and scale are
// shared with segmentation and the pose tracker.
func (c *TuningConfig) GeometryParams() geometry.Params {
	return geometry.Params{
		MaxRangeCM:        c.GetMaxRangeCM(),
		Scale:             c.GetMapScale(),
		SensorOffsetCM:    c.GetSensorOffsetCM(),
		ForwardBearingDeg: c.GetForwardBearingDeg(),
	}
}

// PoseParams builds the pose tracker parameters.
func (c *TuningConfig) PoseParams() pose.Params {
	return pose.Params{
		Scale:   c.GetMapScale(),
		Initial: pose.Pose{HeadingDeg: c.GetInitialHeadingDeg()},
	}
}

// PipelineConfig builds the full core configuration.
func (c *TuningConfig) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		Segment:      c.SegmentParams(),
		Geometry:     c.GeometryParams(),
		Pose:         c.PoseParams(),
		BumpOffset:   c.GetBumpOffset(),
		BumpAngleDeg: c.GetBumpAngleDeg(),
	}
}
