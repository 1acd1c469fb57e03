package models

import (
	"encoding/json"
	"fmt"
)

// FileCategory is the coarse type assigned to a file by the classifier
type FileCategory int

const (
	// CategoryOther covers everything that is not a native binary
	CategoryOther FileCategory = iota
	// CategoryExecutable is a native executable or shared library
	CategoryExecutable
	// CategoryKernelModule is a loadable kernel module (.ko)
	CategoryKernelModule
)

// String returns the label used in reports
func (c FileCategory) String() string {
	switch c {
	case CategoryExecutable:
		return "ELF Executable"
	case CategoryKernelModule:
		return "Kernel Module"
	case CategoryOther:
		return "Other"
	default:
		return fmt.Sprintf("FileCategory(%d)", int(c))
	}
}

// IsBinary reports whether files of this category are fuzzy-compared
func (c FileCategory) IsBinary() bool {
	switch c {
	case CategoryExecutable, CategoryKernelModule:
		return true
	default:
		return false
	}
}

// Rank orders categories in reports: executables, then kernel modules, then the rest
func (c FileCategory) Rank() int {
	switch c {
	case CategoryExecutable:
		return 0
	case CategoryKernelModule:
		return 1
	default:
		return 2
	}
}

// MarshalJSON encodes the category by its label
func (c FileCategory) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a category from its label
func (c *FileCategory) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	for _, candidate := range []FileCategory{CategoryExecutable, CategoryKernelModule, CategoryOther} {
		if candidate.String() == label {
			*c = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown file category %q", label)
}
