package errors

import (
	"errors"
	"fmt"
)

// Category classifies error types for targeted handling and monitoring.
type Category string

const (
	CategoryEngine   Category = "engine"
	CategoryDecode   Category = "decode"
	CategoryResize   Category = "resize"
	CategoryEncode   Category = "encode"
	CategoryBudget   Category = "budget"
	CategoryPipeline Category = "pipeline"
	CategoryConfig   Category = "config"
	CategoryInput    Category = "input"
)

// ProcessingError is the structured error type used throughout the module.
type ProcessingError struct {
	Category Category
	Op       string // operation name
	Err      error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// New creates a ProcessingError.
func New(category Category, op string, err error) *ProcessingError {
	return &ProcessingError{Category: category, Op: op, Err: err}
}

// Wrap wraps an existing error with context.  An error that already carries a
// category is returned unchanged so stage errors surface as the stage raised
// them.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return err
	}
	var be *BudgetUnreachableError
	if errors.As(err, &be) {
		return err
	}
	return New(category, op, err)
}

// EngineInit wraps a codec bring-up failure.
func EngineInit(op string, err error) error { return Wrap(CategoryEngine, op, err) }

// Decode wraps an unreadable, corrupt or unsupported source.
func Decode(op string, err error) error { return Wrap(CategoryDecode, op, err) }

// Resize wraps a resampling failure.
func Resize(op string, err error) error { return Wrap(CategoryResize, op, err) }

// Encode wraps an encoder rejecting a surface.
func Encode(op string, err error) error { return Wrap(CategoryEncode, op, err) }

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, cat Category) bool {
	var be *BudgetUnreachableError
	if errors.As(err, &be) {
		return cat == CategoryBudget
	}
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Category == cat
	}
	return false
}

// CategoryOf returns the category of err, or "" for foreign errors.
func CategoryOf(err error) Category {
	var be *BudgetUnreachableError
	if errors.As(err, &be) {
		return CategoryBudget
	}
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// BudgetUnreachableError is returned when every rung of the quality ladder
// produced output larger than the byte budget.
type BudgetUnreachableError struct {
	Budget       int64
	SmallestSize int64 // smallest output achieved across all attempts
	Quality      int   // quality that produced SmallestSize
	Format       string
	Attempts     int
}

func (e *BudgetUnreachableError) Error() string {
	return fmt.Sprintf("[%s] budget unreachable: smallest %s output was %d bytes at quality %d after %d attempts, budget %d bytes",
		CategoryBudget, e.Format, e.SmallestSize, e.Quality, e.Attempts, e.Budget)
}

// Is lets errors.Is(err, ErrBudgetUnreachable) match.
func (e *BudgetUnreachableError) Is(target error) bool { return target == ErrBudgetUnreachable }

// Sentinel errors for common failure modes.
var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrInvalidDimensions = errors.New("invalid dimensions")
	ErrEmptyInput        = errors.New("empty input")
	ErrInvalidQuality    = errors.New("invalid quality range")
	ErrSourceTooLarge    = errors.New("source exceeds size limit")
	ErrWorkerPoolFull    = errors.New("worker pool queue full")
	ErrBudgetUnreachable = errors.New("byte budget unreachable")
	ErrNoEncoder         = errors.New("no encoder registered")
	ErrStopped           = errors.New("processor stopped")
)
