package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData is returned when a series is shorter than a computation needs
	ErrInsufficientData = errors.New("insufficient data")
	// ErrMisalignedSeries is returned when asset and benchmark share too few timestamps
	ErrMisalignedSeries = errors.New("misaligned series")
	// ErrInvalidBar is returned by ingestion when a bar breaks an OHLCV invariant
	ErrInvalidBar = errors.New("invalid price bar")
	// ErrInvalidSeries is returned by ingestion when bar ordering is broken
	ErrInvalidSeries = errors.New("invalid price series")
	// ErrInvalidParameter is returned for non-positive windows and similar misuse
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrUnknownPrice marks a position that has no current price
	ErrUnknownPrice = errors.New("unknown price")
)

// InsufficientDataError reports how much data a computation needed
type InsufficientDataError struct {
	Computation string
	Required    int
	Got         int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data: need %d, got %d", e.Computation, e.Required, e.Got)
}

// Unwrap lets errors.Is match ErrInsufficientData
func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }

// NewInsufficientData builds an InsufficientDataError
func NewInsufficientData(computation string, required, got int) error {
	return &InsufficientDataError{Computation: computation, Required: required, Got: got}
}

// MisalignedSeriesError reports the overlap found between two return series
type MisalignedSeriesError struct {
	Asset     string
	Benchmark string
	Overlap   int
	Required  int
}

func (e *MisalignedSeriesError) Error() string {
	return fmt.Sprintf("%s vs %s: misaligned series: %d common timestamps, need %d",
		e.Asset, e.Benchmark, e.Overlap, e.Required)
}

// Unwrap lets errors.Is match ErrMisalignedSeries
func (e *MisalignedSeriesError) Unwrap() error { return ErrMisalignedSeries }

// Diagnostic attaches a non-fatal problem to an (asset, metric) pair
type Diagnostic struct {
	Asset   string `json:"asset"`
	Metric  string `json:"metric"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Diagnostic codes
const (
	CodeInsufficientData = "insufficient_data"
	CodeMisaligned       = "misaligned_series"
	CodeUnknownPrice     = "unknown_price"
	CodeMissingSeries    = "missing_series"
	CodeDegenerate       = "degenerate_input"
	CodeInvalidPosition  = "invalid_position"
	CodeError            = "error"
)

// DiagnosticFromError classifies err into a Diagnostic
func DiagnosticFromError(asset, metric string, err error) Diagnostic {
	code := CodeError
	switch {
	case errors.Is(err, ErrInsufficientData):
		code = CodeInsufficientData
	case errors.Is(err, ErrMisalignedSeries):
		code = CodeMisaligned
	case errors.Is(err, ErrUnknownPrice):
		code = CodeUnknownPrice
	}
	return Diagnostic{Asset: asset, Metric: metric, Code: code, Message: err.Error()}
}
