package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAreRegistered(t *testing.T) {
	m := New()
	m.BadgesCreated.Add(2)
	m.RemoteErrors.WithLabelValues("GuildRoleCreate").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BadgesCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RemoteErrors.WithLabelValues("GuildRoleCreate")))

	count, err := testutil.GatherAndCount(m.Registry, "slippidex_badges_created_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestServeDisabled(t *testing.T) {
	assert.Nil(t, Serve("", New(), nil))
	var s *Server
	assert.NoError(t, s.Stop(context.Background()))
}
