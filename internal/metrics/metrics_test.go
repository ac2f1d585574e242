package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterDomainMetricsIsIdempotent(t *testing.T) {
	RegisterDomainMetrics(prometheus.NewRegistry())
	// a second call must not panic with an AlreadyRegistered error
	RegisterDomainMetrics(prometheus.NewRegistry())
}

func TestCountersWorkWithoutScrape(t *testing.T) {
	before := testutil.ToFloat64(friendRequestsTotal.WithLabelValues(StatusFailed))
	IncFriendRequest(StatusFailed)
	require.Equal(t, before+1, testutil.ToFloat64(friendRequestsTotal.WithLabelValues(StatusFailed)))

	gaugeBefore := testutil.ToFloat64(wsConnectionsActive)
	IncWSConnected()
	IncWSDisconnected()
	require.Equal(t, gaugeBefore, testutil.ToFloat64(wsConnectionsActive))
}
