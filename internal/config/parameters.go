// Package config defines the immutable parameter set of a tracking run and
// loads it from a JSON tuning file.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ContourPolicy selects which contours of the boundary tree become candidates.
type ContourPolicy string

const (
	// ContourPolicyAll treats every traced boundary as a candidate.
	ContourPolicyAll ContourPolicy = "all"
	// ContourPolicyOuter keeps only boundaries without a parent in the hierarchy.
	ContourPolicyOuter ContourPolicy = "outer"
)

// RunningAverage is the opt-in temporal smoothing of the crop:
// R = DecayRate·(crop/255)^Exponent·255 + (1-DecayRate)·R.
type RunningAverage struct {
	Enabled   bool    `json:"enabled"`
	DecayRate float64 `json:"decay_rate"`
	Exponent  float64 `json:"exponent"`
}

// Parameters is the full, immutable configuration of one tracking run.
type Parameters struct {
	// Percentile threshold blend. Kept for configuration compatibility; the
	// Otsu binarization does not read it.
	PercHigh   float64 `json:"perc_high"`
	PercLow    float64 `json:"perc_low"`
	PercWeight float64 `json:"perc_weight"`

	RelativeAreaThreshold float64 `json:"relative_area_threshold"`
	RatioThreshold        float64 `json:"ratio_threshold"`
	ErrorThreshold        float64 `json:"error_threshold"`
	MinContourLen         int     `json:"min_contour_len"`
	Margin                float64 `json:"margin"`
	ContrastThreshold     float64 `json:"contrast_threshold"`
	SpeedThreshold        float64 `json:"speed_threshold"`
	DRThreshold           float64 `json:"dr_threshold"`
	GaussianBlurHalfWidth int     `json:"gaussian_blur"`

	// Gamma applied to the crop through a lookup table; 1 disables it.
	Gamma          float64        `json:"gamma"`
	RunningAverage RunningAverage `json:"running_average"`

	ContourPolicy           ContourPolicy `json:"contour_policy"`
	PriorDilationIterations int           `json:"prior_dilation_iterations"`
	NearMissMatchCount      int           `json:"near_miss_match_count"`
	ProgressInterval        int           `json:"progress_interval"`
}

// DefaultParameters returns the tuning used when no file overrides a field.
func DefaultParameters() Parameters {
	return Parameters{
		PercHigh:                98,
		PercLow:                 2,
		PercWeight:              0.25,
		RelativeAreaThreshold:   0.002,
		RatioThreshold:          1.5,
		ErrorThreshold:          0.1,
		MinContourLen:           5,
		Margin:                  0.02,
		ContrastThreshold:       10,
		SpeedThreshold:          0.1,
		DRThreshold:             0.1,
		GaussianBlurHalfWidth:   1,
		Gamma:                   1,
		RunningAverage:          RunningAverage{DecayRate: 0.5, Exponent: 1},
		ContourPolicy:           ContourPolicyAll,
		PriorDilationIterations: 10,
		NearMissMatchCount:      5,
		ProgressInterval:        500,
	}
}

// ErrInvalidParameters is wrapped by every validation failure.
var ErrInvalidParameters = errors.New("invalid parameters")

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInvalidParameters, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidParameters
}

// Validate rejects malformed configurations. Values are never clamped.
func (p Parameters) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	nonNegative := []struct {
		name  string
		value float64
	}{
		{"perc_high", p.PercHigh},
		{"perc_low", p.PercLow},
		{"perc_weight", p.PercWeight},
		{"relative_area_threshold", p.RelativeAreaThreshold},
		{"ratio_threshold", p.RatioThreshold},
		{"error_threshold", p.ErrorThreshold},
		{"contrast_threshold", p.ContrastThreshold},
		{"speed_threshold", p.SpeedThreshold},
		{"dr_threshold", p.DRThreshold},
	}
	for _, f := range nonNegative {
		if f.value < 0 {
			add("%s must be non-negative, got: %g", f.name, f.value)
		}
	}

	if p.MinContourLen < 5 {
		add("min_contour_len must be at least 5, got: %d", p.MinContourLen)
	}
	if p.Margin <= 0 || p.Margin >= 0.5 {
		add("margin must be in (0, 0.5), got: %g", p.Margin)
	}
	if p.GaussianBlurHalfWidth <= 0 {
		add("gaussian_blur must be positive, got: %d", p.GaussianBlurHalfWidth)
	}
	if p.Gamma <= 0 {
		add("gamma must be positive, got: %g", p.Gamma)
	}
	if p.RunningAverage.Enabled {
		if p.RunningAverage.DecayRate <= 0 || p.RunningAverage.DecayRate > 1 {
			add("running_average.decay_rate must be in (0, 1], got: %g", p.RunningAverage.DecayRate)
		}
		if p.RunningAverage.Exponent <= 0 {
			add("running_average.exponent must be positive, got: %g", p.RunningAverage.Exponent)
		}
	}
	switch p.ContourPolicy {
	case ContourPolicyAll, ContourPolicyOuter:
	default:
		add("contour_policy must be %q or %q, got: %q", ContourPolicyAll, ContourPolicyOuter, p.ContourPolicy)
	}
	if p.PriorDilationIterations < 0 {
		add("prior_dilation_iterations must be non-negative, got: %d", p.PriorDilationIterations)
	}
	if p.NearMissMatchCount < 0 {
		add("near_miss_match_count must be non-negative, got: %d", p.NearMissMatchCount)
	}
	if p.ProgressInterval < 0 {
		add("progress_interval must be non-negative, got: %d", p.ProgressInterval)
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// parametersFile mirrors Parameters with pointer fields so a partial file
// only overrides what it names.
type parametersFile struct {
	PercHigh                *float64       `json:"perc_high,omitempty"`
	PercLow                 *float64       `json:"perc_low,omitempty"`
	PercWeight              *float64       `json:"perc_weight,omitempty"`
	RelativeAreaThreshold   *float64       `json:"relative_area_threshold,omitempty"`
	RatioThreshold          *float64       `json:"ratio_threshold,omitempty"`
	ErrorThreshold          *float64       `json:"error_threshold,omitempty"`
	MinContourLen           *int           `json:"min_contour_len,omitempty"`
	Margin                  *float64       `json:"margin,omitempty"`
	ContrastThreshold       *float64       `json:"contrast_threshold,omitempty"`
	SpeedThreshold          *float64       `json:"speed_threshold,omitempty"`
	DRThreshold             *float64       `json:"dr_threshold,omitempty"`
	GaussianBlurHalfWidth   *int           `json:"gaussian_blur,omitempty"`
	Gamma                   *float64       `json:"gamma,omitempty"`
	RunningAverage          *runningAvgRaw `json:"running_average,omitempty"`
	ContourPolicy           *string        `json:"contour_policy,omitempty"`
	PriorDilationIterations *int           `json:"prior_dilation_iterations,omitempty"`
	NearMissMatchCount      *int           `json:"near_miss_match_count,omitempty"`
	ProgressInterval        *int           `json:"progress_interval,omitempty"`
}

type runningAvgRaw struct {
	Enabled   *bool    `json:"enabled,omitempty"`
	DecayRate *float64 `json:"decay_rate,omitempty"`
	Exponent  *float64 `json:"exponent,omitempty"`
}

const maxFileSize = 1 * 1024 * 1024

// LoadParameters reads a JSON tuning file, applies it over DefaultParameters
// and validates the result.
func LoadParameters(path string) (Parameters, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return Parameters{}, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return Parameters{}, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return Parameters{}, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return Parameters{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseParameters(data)
}

// ParseParameters decodes a JSON document over DefaultParameters and validates it.
// Unknown fields are rejected.
func ParseParameters(data []byte) (Parameters, error) {
	var raw parametersFile
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return Parameters{}, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	p := DefaultParameters()
	raw.applyTo(&p)
	if err := p.Validate(); err != nil {
		return Parameters{}, err
	}
	return p, nil
}

func (raw parametersFile) applyTo(p *Parameters) {
	setFloat(&p.PercHigh, raw.PercHigh)
	setFloat(&p.PercLow, raw.PercLow)
	setFloat(&p.PercWeight, raw.PercWeight)
	setFloat(&p.RelativeAreaThreshold, raw.RelativeAreaThreshold)
	setFloat(&p.RatioThreshold, raw.RatioThreshold)
	setFloat(&p.ErrorThreshold, raw.ErrorThreshold)
	setInt(&p.MinContourLen, raw.MinContourLen)
	setFloat(&p.Margin, raw.Margin)
	setFloat(&p.ContrastThreshold, raw.ContrastThreshold)
	setFloat(&p.SpeedThreshold, raw.SpeedThreshold)
	setFloat(&p.DRThreshold, raw.DRThreshold)
	setInt(&p.GaussianBlurHalfWidth, raw.GaussianBlurHalfWidth)
	setFloat(&p.Gamma, raw.Gamma)
	if ra := raw.RunningAverage; ra != nil {
		if ra.Enabled != nil {
			p.RunningAverage.Enabled = *ra.Enabled
		}
		setFloat(&p.RunningAverage.DecayRate, ra.DecayRate)
		setFloat(&p.RunningAverage.Exponent, ra.Exponent)
	}
	if raw.ContourPolicy != nil {
		p.ContourPolicy = ContourPolicy(*raw.ContourPolicy)
	}
	setInt(&p.PriorDilationIterations, raw.PriorDilationIterations)
	setInt(&p.NearMissMatchCount, raw.NearMissMatchCount)
	setInt(&p.ProgressInterval, raw.ProgressInterval)
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
