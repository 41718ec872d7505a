package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, FromContext(ctx))

	ctx = WithID(ctx, "acme")
	assert.Equal(t, "acme", FromContext(ctx))

	// Rebinding shadows, it does not mutate the parent.
	child := WithID(ctx, "globex")
	assert.Equal(t, "globex", FromContext(child))
	assert.Equal(t, "acme", FromContext(ctx))
}
