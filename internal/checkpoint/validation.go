package checkpoint

import (
	"fmt"
	"sort"
	"strings"
)

// Limits applied when reading untrusted files.
const (
	MaxHeaderSize   = 16 * 1024 * 1024
	MaxArrayCount   = 100_000
	MaxArrayNameLen = 1024
)

// ValidateArrayName rejects empty, oversized or path-like names.
func ValidateArrayName(name string) error {
	switch {
	case name == "":
		return &ValidationError{Type: "invalid_name", Details: "empty array name"}
	case len(name) > MaxArrayNameLen:
		return &ValidationError{Type: "name_too_long", Array: name,
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxArrayNameLen)}
	case strings.Contains(name, ".."), strings.ContainsAny(name, "/\\\x00"):
		return &ValidationError{Type: "invalid_name", Array: name, Details: "contains a path separator, '..' or a null byte"}
	}
	return nil
}

// ValidateArrays checks that every array has a valid name, a size matching
// its length, lies inside the data section and overlaps no other array.
func ValidateArrays(arrays []ArrayMeta, elemSize int, dataSize int64) error {
	if len(arrays) > MaxArrayCount {
		return &ValidationError{Type: "too_many_arrays",
			Details: fmt.Sprintf("got %d, max %d", len(arrays), MaxArrayCount)}
	}
	seen := make(map[string]bool, len(arrays))
	for _, a := range arrays {
		if err := ValidateArrayName(a.Name); err != nil {
			return err
		}
		if seen[a.Name] {
			return &ValidationError{Type: "duplicate_name", Array: a.Name, Details: "array listed twice"}
		}
		seen[a.Name] = true
		if a.Offset < 0 || a.Size < 0 || a.Length < 0 {
			return &ValidationError{Type: "negative_offset", Array: a.Name,
				Details: fmt.Sprintf("offset=%d, size=%d, length=%d", a.Offset, a.Size, a.Length)}
		}
		if a.Size != a.Length*int64(elemSize) {
			return &ValidationError{Type: "size_mismatch", Array: a.Name,
				Details: fmt.Sprintf("size %d for %d elements of %d bytes", a.Size, a.Length, elemSize)}
		}
		if a.Offset+a.Size > dataSize {
			return &ValidationError{Type: "out_of_bounds", Array: a.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", a.Offset, a.Size, dataSize)}
		}
	}

	sorted := make([]ArrayMeta, len(arrays))
	copy(sorted, arrays)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })
	for i := 0; i+1 < len(sorted); i++ {
		a, b := sorted[i], sorted[i+1]
		if a.Offset+a.Size > b.Offset {
			return &ValidationError{Type: "offset_overlap", Array: a.Name, Array2: b.Name,
				Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap", a.Offset, a.Offset+a.Size, b.Offset, b.Offset+b.Size)}
		}
	}
	return nil
}
