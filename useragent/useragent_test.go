package useragent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	ctx := context.Background()
	assert.Contains(t, Get(ctx), "pylock-attest")

	ctx = Set(ctx, "custom-agent/1.0")
	assert.Equal(t, "custom-agent/1.0", Get(ctx))
}
