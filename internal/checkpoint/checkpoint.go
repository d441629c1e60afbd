package checkpoint

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/born-ml/gplace/internal/optim"
	"github.com/born-ml/gplace/internal/tensor"
)

// Checkpoint is the resumable state of a placement run.
type Checkpoint[T tensor.Float] struct {
	RunID     string
	CreatedAt time.Time // Set by Save when zero
	Optimizer string
	Stats     optim.Stats
	Positions []T
	State     map[string][]T // Optimizer state dictionary
	Metadata  map[string]string
}

// Save writes c to path. The file is written to a temporary sibling first
// and renamed into place, so a crash never leaves a partial checkpoint.
func Save[T tensor.Float](path string, c *Checkpoint[T]) error {
	data, err := Encode(c)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("checkpoint: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("checkpoint: write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}

// Load reads a checkpoint written by Save. The file's element type must
// match T.
func Load[T tensor.Float](path string) (*Checkpoint[T], error) {
	//nolint:gosec // G304: checkpoint paths come from the user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}
	c, err := Decode[T](data)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: %s: %w", path, err)
	}
	return c, nil
}

// Encode serializes c into the checkpoint file format.
func Encode[T tensor.Float](c *Checkpoint[T]) ([]byte, error) {
	if c.Positions == nil {
		return nil, fmt.Errorf("checkpoint: positions are required")
	}
	dt := tensor.DataTypeOf[T]()
	created := c.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	header := Header{
		FormatVersion: FormatVersion,
		RunID:         c.RunID,
		CreatedAt:     created,
		DType:         dt.String(),
		Optimizer:     c.Optimizer,
		Stats:         statsMeta(c.Stats),
		Metadata:      c.Metadata,
	}

	names := make([]string, 0, len(c.State))
	for name := range c.State {
		if name == PositionsArray {
			return nil, fmt.Errorf("checkpoint: state name %q is reserved", name)
		}
		if err := ValidateArrayName(name); err != nil {
			return nil, fmt.Errorf("checkpoint: %w", err)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	names = append([]string{PositionsArray}, names...)

	var payload bytes.Buffer
	for _, name := range names {
		arr := c.State[name]
		if name == PositionsArray {
			arr = c.Positions
		}
		size := int64(len(arr) * dt.Size())
		header.Arrays = append(header.Arrays, ArrayMeta{
			Name:   name,
			Length: int64(len(arr)),
			Offset: int64(payload.Len()),
			Size:   size,
		})
		writeFloats(&payload, arr)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: marshal header: %w", err)
	}
	checksum := sha256.Sum256(payload.Bytes())

	flags := uint32(0)
	if len(c.State) > 0 {
		flags |= FlagHasOptimizer
	}
	if len(c.Metadata) > 0 {
		flags |= FlagHasMetadata
	}

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(payload.Len()))
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	pos := FixedHeaderSize + len(headerJSON)
	padding := (DataAlignment - pos%DataAlignment) % DataAlignment

	out := make([]byte, 0, pos+padding+payload.Len())
	out = append(out, fixed...)
	out = append(out, headerJSON...)
	out = append(out, make([]byte, padding)...)
	out = append(out, payload.Bytes()...)
	return out, nil
}

// Decode parses the checkpoint file format.
//
//nolint:gocyclo,cyclop // linear sequence of format checks
func Decode[T tensor.Float](data []byte) (*Checkpoint[T], error) {
	if len(data) < FixedHeaderSize {
		return nil, ErrTruncated
	}
	if string(data[0:4]) != MagicBytes {
		return nil, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	headerSize := binary.LittleEndian.Uint64(data[16:24])
	dataSize := binary.LittleEndian.Uint64(data[24:32])
	if headerSize > MaxHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}

	pos := FixedHeaderSize + int(headerSize)
	start := pos + (DataAlignment-pos%DataAlignment)%DataAlignment
	if dataSize > uint64(len(data)) || uint64(len(data)) < uint64(start)+dataSize {
		return nil, ErrTruncated
	}
	payload := data[start : uint64(start)+dataSize]

	var stored [ChecksumSize]byte
	copy(stored[:], data[ChecksumOffset:ChecksumOffset+ChecksumSize])
	if sha256.Sum256(payload) != stored {
		return nil, ErrChecksumMismatch
	}

	var header Header
	if err := json.Unmarshal(data[FixedHeaderSize:pos], &header); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}
	dt := tensor.DataTypeOf[T]()
	if header.DType != dt.String() {
		return nil, fmt.Errorf("%w: file holds %s, want %s", ErrDTypeMismatch, header.DType, dt)
	}
	//nolint:gosec // G115: dataSize is bounded by len(data)
	if err := ValidateArrays(header.Arrays, dt.Size(), int64(dataSize)); err != nil {
		return nil, err
	}

	c := &Checkpoint[T]{
		RunID:     header.RunID,
		CreatedAt: header.CreatedAt,
		Optimizer: header.Optimizer,
		Stats:     header.Stats.Stats(),
		Metadata:  header.Metadata,
	}
	for _, a := range header.Arrays {
		arr := readFloats[T](payload[a.Offset : a.Offset+a.Size])
		if a.Name == PositionsArray {
			c.Positions = arr
			continue
		}
		if c.State == nil {
			c.State = make(map[string][]T)
		}
		c.State[a.Name] = arr
	}
	if c.Positions == nil {
		return nil, &ValidationError{Type: "missing_array", Array: PositionsArray, Details: "positions are required"}
	}
	return c, nil
}

func writeFloats[T tensor.Float](buf *bytes.Buffer, arr []T) {
	var scratch [8]byte
	switch v := any(arr).(type) {
	case []float32:
		for _, f := range v {
			binary.LittleEndian.PutUint32(scratch[:4], math.Float32bits(f))
			buf.Write(scratch[:4])
		}
	case []float64:
		for _, f := range v {
			binary.LittleEndian.PutUint64(scratch[:], math.Float64bits(f))
			buf.Write(scratch[:])
		}
	}
}

func readFloats[T tensor.Float](b []byte) []T {
	switch any(T(0)).(type) {
	case float32:
		out := make([]float32, len(b)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
		}
		return any(out).([]T)
	default:
		out := make([]float64, len(b)/8)
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
		}
		return any(out).([]T)
	}
}
