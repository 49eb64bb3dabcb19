package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByCode(t *testing.T) {
	cause := fmt.Errorf("dial tcp: i/o timeout")
	err := WrapAs(ErrTransport, cause, "page 4 failed")

	assert.True(t, errors.Is(err, ErrTransport))
	assert.False(t, errors.Is(err, ErrParse))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "page 4 failed: dial tcp: i/o timeout", err.Error())

	wrapped := fmt.Errorf("cycle 3: %w", Clone(ErrNotFound, "section missing"))
	assert.True(t, errors.Is(wrapped, ErrNotFound))
}

func TestWrapAsKeepsDefaultMessage(t *testing.T) {
	err := WrapAs(ErrDelivery, errors.New("503"), "")
	assert.Equal(t, ErrDelivery.Message, err.Message)
	assert.Equal(t, http.StatusBadGateway, err.Status)
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))
	assert.Equal(t, ErrInternal.Code, FromError(errors.New("boom")).Code)
	assert.Equal(t, ErrParse.Code, FromError(fmt.Errorf("ctx: %w", ErrParse)).Code)
}
