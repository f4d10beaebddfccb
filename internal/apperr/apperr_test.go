package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfClassifiesWrappedErrors(t *testing.T) {
	base := Conflict("phone", "duplicate phone")
	wrapped := fmt.Errorf("creating customer: %w", base)

	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.Equal(t, "phone", FieldOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestErrorMessageIncludesField(t *testing.T) {
	assert.Equal(t, "amount: amount must be positive", Validation("amount", "amount must be positive").Error())
	assert.Equal(t, "admin privileges required", Authorization("admin privileges required").Error())
}

func TestTransientUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := Transient("store unavailable", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindTransient, KindOf(err))
}
