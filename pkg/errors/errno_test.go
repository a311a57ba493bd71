package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestMakeCode(t *testing.T) {
	code := MakeCode(ServiceDocquery, CategoryNotFound, 3)
	assert.Equal(t, 2103003, code)

	service, category, seq := ParseCode(code)
	assert.Equal(t, ServiceDocquery, service)
	assert.Equal(t, CategoryNotFound, category)
	assert.Equal(t, 3, seq)
}

func TestWithCausePreservesIdentity(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := ErrEmbeddingService.WithCause(cause)

	assert.True(t, stderrors.Is(err, ErrEmbeddingService))
	assert.Equal(t, cause, stderrors.Unwrap(err))
	// 原错误不受副本影响
	assert.Nil(t, stderrors.Unwrap(ErrEmbeddingService))
}

func TestWithMessageKeepsCode(t *testing.T) {
	err := ErrUnsupportedFormat.WithMessagef("unsupported media type %q", "image/png")

	assert.True(t, stderrors.Is(err, ErrUnsupportedFormat))
	assert.Contains(t, err.Error(), "image/png")
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus())
}

func TestFromError(t *testing.T) {
	assert.Equal(t, OK, FromError(nil))

	wrapped := fmt.Errorf("query failed: %w", ErrEmptyScope)
	e := FromError(wrapped)
	assert.Equal(t, ErrEmptyScope.Code, e.Code)

	plain := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, plain.Code)
	assert.Equal(t, codes.Internal, plain.GRPCStatus())
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", ErrNoContext.WithCause(fmt.Errorf("inner")))
	assert.True(t, IsCode(err, ErrNoContext.Code))
	assert.False(t, IsCode(err, ErrEmptyScope.Code))
}

func TestRegistryLookup(t *testing.T) {
	e, ok := Lookup(ErrHistoryNotFound.Code)
	require.True(t, ok)
	assert.Equal(t, ErrHistoryNotFound, e)

	_, ok = Lookup(9999999)
	assert.False(t, ok)
}
