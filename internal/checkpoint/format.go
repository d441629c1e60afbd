// Package checkpoint saves and restores placement runs.
//
// A checkpoint file is laid out as:
//
//	0x00  magic "GPLC"
//	0x04  format version (uint32, little endian)
//	0x08  flags (uint32)
//	0x10  JSON header size (uint64)
//	0x18  array data size (uint64)
//	0x20  SHA-256 of the array data (32 bytes)
//	0x40  JSON header, zero padded to a 64 byte boundary
//	      array data, little endian, in header order
//
// The header records the run id, element type, optimizer name and step
// statistics together with the name, length and offset of every array.
package checkpoint

import (
	"math"
	"time"

	"github.com/born-ml/gplace/internal/optim"
)

// Format constants.
const (
	MagicBytes      = "GPLC"
	FormatVersion   = 1
	FixedHeaderSize = 64
	ChecksumOffset  = 0x20
	ChecksumSize    = 32
	DataAlignment   = 64
)

// Flags.
const (
	FlagHasOptimizer uint32 = 1 << 0 // optimizer state arrays present
	FlagHasMetadata  uint32 = 1 << 1 // custom metadata present
)

// PositionsArray names the array holding the placement positions.
const PositionsArray = "positions"

// Header is the JSON header of a checkpoint file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	RunID         string            `json:"run_id"`
	CreatedAt     time.Time         `json:"created_at"`
	DType         string            `json:"dtype"`
	Optimizer     string            `json:"optimizer"`
	Stats         StatsMeta         `json:"stats"`
	Arrays        []ArrayMeta       `json:"arrays"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// ArrayMeta describes one array in the data section.
type ArrayMeta struct {
	Name   string `json:"name"`
	Length int64  `json:"length"` // Elements
	Offset int64  `json:"offset"` // Bytes from the start of the data section
	Size   int64  `json:"size"`   // Bytes
}

// StatsMeta is the JSON form of optim.Stats. Unknown (NaN) values are
// omitted since JSON has no NaN.
type StatsMeta struct {
	Iteration   int      `json:"iteration"`
	Evaluations int      `json:"evaluations"`
	Backtracks  int      `json:"backtracks"`
	Skipped     int      `json:"skipped"`
	StepSize    *float64 `json:"step_size,omitempty"`
	Momentum    *float64 `json:"momentum,omitempty"`
	Beta        *float64 `json:"beta,omitempty"`
	Objective   *float64 `json:"objective,omitempty"`
}

func statsMeta(s optim.Stats) StatsMeta {
	return StatsMeta{
		Iteration:   s.Iteration,
		Evaluations: s.Evaluations,
		Backtracks:  s.Backtracks,
		Skipped:     s.Skipped,
		StepSize:    finite(s.StepSize),
		Momentum:    finite(s.Momentum),
		Beta:        finite(s.Beta),
		Objective:   finite(s.Objective),
	}
}

// Stats converts the header form back to optim.Stats.
func (m StatsMeta) Stats() optim.Stats {
	return optim.Stats{
		Iteration:   m.Iteration,
		Evaluations: m.Evaluations,
		Backtracks:  m.Backtracks,
		Skipped:     m.Skipped,
		StepSize:    orNaN(m.StepSize),
		Momentum:    orNaN(m.Momentum),
		Beta:        orNaN(m.Beta),
		Objective:   orNaN(m.Objective),
	}
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
