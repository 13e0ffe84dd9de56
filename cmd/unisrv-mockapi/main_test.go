package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserFlags(t *testing.T) {
	users := userFlags{}
	require.NoError(t, users.Set("alice:s3cret:with:colons"))
	assert.Equal(t, "s3cret:with:colons", users["alice"])

	for _, bad := range []string{"alice", ":pw", "alice:"} {
		assert.Error(t, users.Set(bad), bad)
	}
}

func TestSetupLogger(t *testing.T) {
	assert.NotNil(t, setupLogger(false))
	assert.True(t, setupLogger(true).Core().Enabled(-1))
}
