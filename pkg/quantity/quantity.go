/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package quantity parses and formats Kubernetes-style resource quantities
// into the canonical integer units the rest of the control
// plane operates on: millicores for CPU, bytes for memory, a raw count for
// GPU. Memory suffix recognition is delegated to apimachinery's resource.Quantity;
// the half-to-even millicore rounding and the GPU suffix convention are
// this package's own, since apimachinery has no notion of either.
package quantity

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/api/resource"
)

// ParseError reports a quantity string that does not match any recognized
// form. It is mapped to errors.InvalidInput at the edge.
type ParseError struct {
	Input string
	Kind  string
	Cause error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("quantity: invalid %s quantity %q: %v", e.Kind, e.Input, e.Cause)
	}
	return fmt.Sprintf("quantity: invalid %s quantity %q", e.Kind, e.Input)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// ParseCPU converts a CPU quantity string to millicores.
//
//   - "" or "0"        -> 0
//   - "<n>m"            -> n millicores, n a non-negative integer
//   - "<n>" / "<n.f>"   -> round-half-to-even(n * 1000) millicores
func ParseCPU(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if strings.HasSuffix(s, "m") {
		digits := strings.TrimSuffix(s, "m")
		n, err := strconv.ParseInt(digits, 10, 64)
		if err != nil || n < 0 {
			return 0, &ParseError{Input: s, Kind: "cpu", Cause: err}
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, &ParseError{Input: s, Kind: "cpu", Cause: err}
	}
	return roundHalfToEven(f * 1000), nil
}

// roundHalfToEven implements banker's rounding for the CPU-to-millicore
// conversion (ties round to the nearest even integer).
func roundHalfToEven(v float64) int64 {
	floor := math.Floor(v)
	diff := v - floor
	switch {
	case diff < 0.5:
		return int64(floor)
	case diff > 0.5:
		return int64(floor) + 1
	default:
		if int64(floor)%2 == 0 {
			return int64(floor)
		}
		return int64(floor) + 1
	}
}

// FormatCPU renders millicores back to the minimal Kubernetes-style string:
// whole cores format without the "m" suffix, anything else uses "m".
func FormatCPU(millicores int64) string {
	if millicores%1000 == 0 {
		return strconv.FormatInt(millicores/1000, 10)
	}
	return fmt.Sprintf("%dm", millicores)
}

// memoryUnits lists binary and decimal suffixes from largest to smallest so
// FormatMemory picks the coarsest exact-fitting suffix.
var memoryUnits = []struct {
	suffix string
	scale  int64
}{
	{"Ti", 1 << 40},
	{"Gi", 1 << 30},
	{"Mi", 1 << 20},
	{"Ki", 1 << 10},
	{"T", 1_000_000_000_000},
	{"G", 1_000_000_000},
	{"M", 1_000_000},
	{"K", 1_000},
}

// ParseMemory converts a memory quantity string to bytes. Suffix parsing is
// delegated to apimachinery, which recognizes Ki/Mi/Gi/Ti (binary), M/G/T
// (decimal, base 1000) and a bare integer byte count. apimachinery spells
// decimal kilo "k", so a trailing "K" is rewritten to "k" before parsing.
func ParseMemory(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	parsed := s
	if strings.HasSuffix(parsed, "K") {
		parsed = strings.TrimSuffix(parsed, "K") + "k"
	}
	q, err := resource.ParseQuantity(parsed)
	if err != nil {
		return 0, &ParseError{Input: s, Kind: "memory", Cause: err}
	}
	v, ok := q.AsInt64()
	if !ok || v < 0 {
		return 0, &ParseError{Input: s, Kind: "memory"}
	}
	return v, nil
}

// FormatMemory renders a byte count using the minimal suffix that yields an
// exact integer, falling back to the bare byte count.
func FormatMemory(bytes int64) string {
	for _, u := range memoryUnits {
		if bytes != 0 && bytes%u.scale == 0 {
			return fmt.Sprintf("%d%s", bytes/u.scale, u.suffix)
		}
	}
	return strconv.FormatInt(bytes, 10)
}

// ParseGPU converts a GPU quantity string to a non-negative integer count.
// A trailing case-insensitive "GPU" suffix is stripped before parsing.
func ParseGPU(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	trimmed := strings.TrimSpace(s)
	if len(trimmed) >= 3 && strings.EqualFold(trimmed[len(trimmed)-3:], "gpu") {
		trimmed = strings.TrimSpace(trimmed[:len(trimmed)-3])
	}
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || n < 0 {
		return 0, &ParseError{Input: s, Kind: "gpu", Cause: err}
	}
	return n, nil
}

// FormatGPU renders a GPU count as a bare integer (no suffix); the "GPU"
// suffix is an accepted input form, not the canonical output form.
func FormatGPU(count int64) string {
	return strconv.FormatInt(count, 10)
}
