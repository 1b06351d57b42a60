package context

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureCorrelationID(t *testing.T) {
	ctx, cid := EnsureCorrelationID(context.Background(), "")
	_, err := ulid.ParseStrict(cid)
	require.NoError(t, err)
	assert.Equal(t, cid, CorrelationIDFromContext(ctx))

	again, same := EnsureCorrelationID(ctx, "")
	assert.Equal(t, cid, same)
	assert.Equal(t, cid, CorrelationIDFromContext(again))

	_, given := EnsureCorrelationID(ctx, " upstream-1 ")
	assert.Equal(t, "upstream-1", given)
}

func TestBlankValuesAreIgnored(t *testing.T) {
	ctx := WithCallerID(context.Background(), "  ")
	assert.Empty(t, CallerIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}
