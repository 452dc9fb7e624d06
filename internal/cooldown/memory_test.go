package cooldown

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetThenExists(t *testing.T) {
	m := NewMemoryStore()
	key := RuleKey("rule_1")

	exists, err := m.Exists(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, m.Set(context.Background(), key, time.Minute))

	exists, err = m.Exists(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryStoreExpires(t *testing.T) {
	m := NewMemoryStore()
	key := RuleKey("rule_2")

	require.NoError(t, m.Set(context.Background(), key, -time.Second))

	exists, err := m.Exists(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, exists, "a cooldown whose TTL has already elapsed must report as expired")
}
