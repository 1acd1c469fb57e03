package models

import "fmt"

// NotFoundError is returned when a tree root does not exist
type NotFoundError struct {
	Path string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("path does not exist: %s", e.Path)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// NotADirectoryError is returned when a tree root is not a directory
type NotADirectoryError struct {
	Path string
}

func (e *NotADirectoryError) Error() string {
	return fmt.Sprintf("path exists but is not a directory: %s", e.Path)
}

// UnreadableFileError is returned when a file's type cannot be determined
type UnreadableFileError struct {
	Path string
	Err  error
}

func (e *UnreadableFileError) Error() string {
	return fmt.Sprintf("cannot classify %s: %v", e.Path, e.Err)
}

func (e *UnreadableFileError) Unwrap() error { return e.Err }

// HashError is returned when a file cannot be fingerprinted
type HashError struct {
	Path string
	Err  error
}

func (e *HashError) Error() string {
	return fmt.Sprintf("cannot fingerprint %s: %v", e.Path, e.Err)
}

func (e *HashError) Unwrap() error { return e.Err }

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
