package xmlrpc

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFaultIs(t *testing.T) {
	t.Parallel()

	f := NewFault(FaultConnectionFailed.Code, "Connection to RPC server x failed")

	require.ErrorIs(t, f, FaultConnectionFailed)
	require.ErrorIs(t, &f, FaultConnectionFailed)
	require.ErrorIs(t, fmt.Errorf("wrapped: %w", f), FaultConnectionFailed)
	require.ErrorIs(t, f, &FaultConnectionFailed)
	require.NotErrorIs(t, f, FaultHTTPError)
	require.NotErrorIs(t, f, errors.New("other"))

	require.ErrorIs(t, f, ErrConnectionFailed)
	require.ErrorIs(t, FaultHTTPError.WithDetail("HTTP/1.0 500 x"), ErrHTTPError)
	require.ErrorIs(t, NewFault(2, "bad"), ErrInvalidReturn)
	require.NotErrorIs(t, FaultUnknownMethod, ErrInvalidReturn)
}

func TestFaultMessages(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "xmlrpc: fault 5: Didn't receive 200 OK from remote server.", FaultHTTPError.Error())
	assert.Equal(t, "Didn't receive 200 OK from remote server. (HTTP/1.0 500 Oops)", FaultHTTPError.WithDetail("HTTP/1.0 500 Oops").Message)
	assert.Equal(t, 5, FaultHTTPError.WithDetail("x").Code)

	assert.Equal(t, 1, FaultUnknownMethod.Code)
	assert.Equal(t, 2, FaultInvalidReturn.Code)
	assert.Equal(t, 3, FaultIncorrectParams.Code)
	assert.Equal(t, 4, FaultIntrospectUnknown.Code)
	assert.Equal(t, 103, FaultConnectionFailed.Code)
	assert.Equal(t, 800, UserFaultBase)
	assert.Equal(t, 100, XMLFaultBase)
}

func TestErrEmptyPayload(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, ErrEmptyPayload, ErrInvalidReturn)
}
