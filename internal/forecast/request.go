// Package forecast builds the request parameters and file names used to
// retrieve ECMWF ensemble precipitation forecasts.
package forecast

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind is the ensemble forecast type.
type Kind string

const (
	// Perturbed is the 100-member perturbed forecast.
	Perturbed Kind = "pf"
	// Control is the single deterministic control run; it arrives as GRIB.
	Control Kind = "cf"
)

// MaxStepHours and StepEvery bound the forecast horizon that is requested.
const (
	MaxStepHours = 144
	StepEvery    = 6
)

// ParseKind accepts "pf" or "cf" (case-insensitive).
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case Perturbed:
		return Perturbed, nil
	case Control:
		return Control, nil
	default:
		return "", fmt.Errorf("unknown forecast kind %q (want pf or cf)", s)
	}
}

// Request is a MARS-style retrieval request.
type Request map[string]string

// Keys returns the request keys in sorted order.
func (r Request) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Target is the file name the request writes to.
func (r Request) Target() string {
	return r["target"]
}

// Steps renders "0/6/12/.../max" for the given horizon.
func Steps(max, every int) string {
	if every <= 0 || max < 0 {
		return "0"
	}
	parts := make([]string, 0, max/every+1)
	for h := 0; h <= max; h += every {
		parts = append(parts, strconv.Itoa(h))
	}
	return strings.Join(parts, "/")
}

// Filename returns enfo_<kind>_YYYY_MM_DD.nc for date (YYYY-MM-DD).
func Filename(kind Kind, date string) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("enfo_%s_%s.nc", kind, t.Format("2006_01_02")), nil
}

// NewRequest builds the total-precipitation request for one forecast date.
func NewRequest(kind Kind, date string) (Request, error) {
	target, err := Filename(kind, date)
	if err != nil {
		return nil, err
	}

	req := Request{
		"class":   "s2",
		"dataset": "s2s",
		"date":    date,
		"expver":  "prod",
		"levtype": "sfc",
		"model":   "glob",
		"origin":  "ecmf",
		"param":   "228228",
		"step":    Steps(MaxStepHours, StepEvery),
		"stream":  "enfo",
		"time":    "00:00:00",
		"type":    string(kind),
		"target":  target,
	}

	switch kind {
	case Perturbed:
		req["number"] = "1/to/100"
		req["format"] = "netcdf"
	case Control:
	default:
		return nil, fmt.Errorf("unknown forecast kind %q", kind)
	}

	return req, nil
}
