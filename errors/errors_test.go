package errors_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	apperrors "github.com/Skryldev/image-compressor/errors"
)

func TestWrap_KeepsExistingCategory(t *testing.T) {
	inner := apperrors.New(apperrors.CategoryDecode, "decode", apperrors.ErrUnsupportedFormat)
	wrapped := apperrors.Wrap(apperrors.CategoryPipeline, "process", fmt.Errorf("step: %w", inner))

	if got := apperrors.CategoryOf(wrapped); got != apperrors.CategoryDecode {
		t.Errorf("category: got %q, want decode", got)
	}
	if !errors.Is(wrapped, apperrors.ErrUnsupportedFormat) {
		t.Error("sentinel lost through Wrap")
	}
	if apperrors.Wrap(apperrors.CategoryEncode, "x", nil) != nil {
		t.Error("Wrap(nil) must be nil")
	}
}

func TestHelpers_Category(t *testing.T) {
	base := errors.New("boom")
	tests := []struct {
		err  error
		want apperrors.Category
	}{
		{apperrors.EngineInit("bringup", base), apperrors.CategoryEngine},
		{apperrors.Decode("decode", base), apperrors.CategoryDecode},
		{apperrors.Resize("resize", base), apperrors.CategoryResize},
		{apperrors.Encode("encode", base), apperrors.CategoryEncode},
		{base, ""},
	}
	for _, tc := range tests {
		if got := apperrors.CategoryOf(tc.err); got != tc.want {
			t.Errorf("%v: got %q, want %q", tc.err, got, tc.want)
		}
		if tc.want != "" && !apperrors.IsCategory(tc.err, tc.want) {
			t.Errorf("%v: IsCategory(%q) = false", tc.err, tc.want)
		}
	}
}

func TestBudgetUnreachableError(t *testing.T) {
	be := &apperrors.BudgetUnreachableError{
		Budget:       500_000,
		SmallestSize: 612_345,
		Quality:      40,
		Format:       "jpeg",
		Attempts:     5,
	}
	err := apperrors.Wrap(apperrors.CategoryPipeline, "encode", be)

	if !errors.Is(err, apperrors.ErrBudgetUnreachable) {
		t.Error("errors.Is(ErrBudgetUnreachable) = false")
	}
	if !apperrors.IsCategory(err, apperrors.CategoryBudget) || apperrors.IsCategory(err, apperrors.CategoryPipeline) {
		t.Errorf("category: got %q, want budget", apperrors.CategoryOf(err))
	}
	var got *apperrors.BudgetUnreachableError
	if !errors.As(err, &got) || got.SmallestSize != 612_345 {
		t.Fatalf("errors.As lost details: %v", err)
	}
	for _, part := range []string{"612345", "quality 40", "5 attempts", "500000"} {
		if !strings.Contains(err.Error(), part) {
			t.Errorf("message %q missing %q", err.Error(), part)
		}
	}
}
