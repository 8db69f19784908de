package seedkit

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for common operations.
var (
	// ErrUnknownVariant is returned when a factory operation names a variant
	// the factory does not define.
	ErrUnknownVariant = errors.New("seedkit: unknown variant")

	// ErrMissingLabel is returned when resolving a labeled reference that was
	// never registered.
	ErrMissingLabel = errors.New("seedkit: label not registered")

	// ErrDuplicateLabel is returned when registering a label that is already
	// taken. Labels are write-once.
	ErrDuplicateLabel = errors.New("seedkit: label already registered")

	// ErrUnregisteredFactory is returned when a descriptor or context lookup
	// refers to an entity type with no registered factory.
	ErrUnregisteredFactory = errors.New("seedkit: factory not registered")
)

// UnknownVariantError reports a variant name that the factory does not define.
type UnknownVariantError struct {
	Factory string   // Entity type of the factory
	Name    string   // The unknown variant name
	Valid   []string // Variant names the factory does define
}

// Error returns the error string.
func (e *UnknownVariantError) Error() string {
	valid := "none"
	if len(e.Valid) > 0 {
		valid = strings.Join(e.Valid, ", ")
	}
	return fmt.Sprintf("seedkit: unknown variant %q for factory %s (valid: %s)", e.Name, e.Factory, valid)
}

// Is reports whether the target error matches UnknownVariantError.
// This allows errors.Is(err, ErrUnknownVariant) to return true.
func (e *UnknownVariantError) Is(err error) bool {
	return err == ErrUnknownVariant
}

// NewUnknownVariantError returns a new UnknownVariantError.
func NewUnknownVariantError(factory, name string, valid []string) *UnknownVariantError {
	return &UnknownVariantError{Factory: factory, Name: name, Valid: valid}
}

// IsUnknownVariant returns true if the error is an UnknownVariantError.
func IsUnknownVariant(err error) bool {
	if err == nil {
		return false
	}
	var e *UnknownVariantError
	return errors.As(err, &e) || errors.Is(err, ErrUnknownVariant)
}

// MissingLabelError reports a labeled-reference lookup for a label that was
// never registered in the seeding context.
type MissingLabelError struct {
	Label string
}

// Error returns the error string.
func (e *MissingLabelError) Error() string {
	return fmt.Sprintf("seedkit: label %q not registered", e.Label)
}

// Is reports whether the target error matches MissingLabelError.
func (e *MissingLabelError) Is(err error) bool {
	return err == ErrMissingLabel
}

// IsMissingLabel returns true if the error is a MissingLabelError.
func IsMissingLabel(err error) bool {
	if err == nil {
		return false
	}
	var e *MissingLabelError
	return errors.As(err, &e) || errors.Is(err, ErrMissingLabel)
}

// DuplicateLabelError reports a second registration of a write-once label.
type DuplicateLabelError struct {
	Label string
}

// Error returns the error string.
func (e *DuplicateLabelError) Error() string {
	return fmt.Sprintf("seedkit: label %q already registered", e.Label)
}

// Is reports whether the target error matches DuplicateLabelError.
func (e *DuplicateLabelError) Is(err error) bool {
	return err == ErrDuplicateLabel
}

// IsDuplicateLabel returns true if the error is a DuplicateLabelError.
func IsDuplicateLabel(err error) bool {
	if err == nil {
		return false
	}
	var e *DuplicateLabelError
	return errors.As(err, &e) || errors.Is(err, ErrDuplicateLabel)
}

// UnregisteredFactoryError reports a lookup for an entity type that has no
// factory registered in the seeding context.
type UnregisteredFactoryError struct {
	Type string // Entity type name
}

// Error returns the error string.
func (e *UnregisteredFactoryError) Error() string {
	return fmt.Sprintf("seedkit: no factory registered for entity type %s", e.Type)
}

// Is reports whether the target error matches UnregisteredFactoryError.
func (e *UnregisteredFactoryError) Is(err error) bool {
	return err == ErrUnregisteredFactory
}

// IsUnregisteredFactory returns true if the error is an UnregisteredFactoryError.
func IsUnregisteredFactory(err error) bool {
	if err == nil {
		return false
	}
	var e *UnregisteredFactoryError
	return errors.As(err, &e) || errors.Is(err, ErrUnregisteredFactory)
}

// UnknownFieldError reports a field mapping key that names no field on the
// target entity struct.
type UnknownFieldError struct {
	Factory string // Entity type of the factory
	Field   string // The offending mapping key
}

// Error returns the error string.
func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("seedkit: entity type %s has no field %q", e.Factory, e.Field)
}

// IsUnknownField returns true if the error is an UnknownFieldError.
func IsUnknownField(err error) bool {
	if err == nil {
		return false
	}
	var e *UnknownFieldError
	return errors.As(err, &e)
}

// AssignError reports a mapping value that cannot be assigned to its target
// struct field.
type AssignError struct {
	Factory string // Entity type of the factory
	Field   string // Target field name
	Err     error  // Underlying reason
}

// Error returns the error string.
func (e *AssignError) Error() string {
	return fmt.Sprintf("seedkit: assigning field %q of %s: %v", e.Field, e.Factory, e.Err)
}

// Unwrap returns the underlying error.
func (e *AssignError) Unwrap() error {
	return e.Err
}

// ResolveError wraps an error raised while resolving one entity, naming the
// factory and the field being resolved.
type ResolveError struct {
	Factory string // Entity type of the factory being resolved
	Field   string // Field under resolution, empty when not field-specific
	Err     error  // Underlying error
}

// Error returns the error string.
func (e *ResolveError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("seedkit: resolving %s.%s: %v", e.Factory, e.Field, e.Err)
	}
	return fmt.Sprintf("seedkit: resolving %s: %v", e.Factory, e.Err)
}

// Unwrap returns the underlying error.
func (e *ResolveError) Unwrap() error {
	return e.Err
}
