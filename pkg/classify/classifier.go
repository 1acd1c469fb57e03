// Package classify assigns a coarse category to a file from its content
// signature and, for kernel modules, its name.
package classify

import (
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sdejongh/fwdiffer/pkg/models"
)

// KernelModuleExt is the extension that marks a loadable kernel module
const KernelModuleExt = ".ko"

// DefaultExecutableTypes are the MIME types treated as native executables.
// PIE executables report as shared libraries, so both are needed.
var DefaultExecutableTypes = []string{
	"application/x-executable",
	"application/x-sharedlib",
}

// Classifier sniffs file headers. It holds no per-file state and is safe for
// concurrent use.
type Classifier struct {
	executableTypes []string
}

// New creates a classifier. An empty list selects DefaultExecutableTypes.
func New(executableTypes []string) *Classifier {
	if len(executableTypes) == 0 {
		executableTypes = DefaultExecutableTypes
	}
	types := make([]string, len(executableTypes))
	copy(types, executableTypes)
	return &Classifier{executableTypes: types}
}

// Classify re-reads the header of the file at path on every call.
// Content sniffing decides the executable case first; the .ko name rule applies
// only to files that did not sniff as executables.
func (c *Classifier) Classify(path string) (models.FileCategory, error) {
	mime, err := c.Detect(path)
	if err != nil {
		return models.CategoryOther, err
	}

	for _, t := range c.executableTypes {
		if mime.Is(t) {
			return models.CategoryExecutable, nil
		}
	}
	if strings.HasSuffix(path, KernelModuleExt) {
		return models.CategoryKernelModule, nil
	}
	return models.CategoryOther, nil
}

// Detect returns the sniffed MIME type of the file at path
func (c *Classifier) Detect(path string) (*mimetype.MIME, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &models.UnreadableFileError{Path: path, Err: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &models.UnreadableFileError{
			Path: path,
			Err:  fmt.Errorf("not a regular file (mode %s)", info.Mode().Type()),
		}
	}

	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, &models.UnreadableFileError{Path: path, Err: err}
	}
	return mime, nil
}
