package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synastry-app/synastry-api/internal/config"
)

func testMonitoringConfig() config.MonitoringConfig {
	return config.MonitoringConfig{
		PassRateThreshold:  0.9,
		FreshCacheMinRatio: 0.25,
	}
}

func TestEvaluate_Healthy(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	alerts := a.Evaluate(&Snapshot{
		MatchDate:       "2026-08-27",
		MatchesTotal:    12,
		MatchesAccepted: 4,
		MatchesPassed:   6,
		MatchesPending:  2,
		RankingFresh:    8,
		RankingTotal:    10,
	})

	assert.Empty(t, alerts)
}

func TestEvaluate_EmptyMatchDay(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	alerts := a.Evaluate(&Snapshot{MatchDate: "2026-08-27"})

	require.Len(t, alerts, 1)
	assert.Equal(t, AlertEmptyMatchDay, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "2026-08-27")
}

func TestEvaluate_HighPassRate(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	alerts := a.Evaluate(&Snapshot{
		MatchesTotal:    10,
		MatchesAccepted: 0,
		MatchesPassed:   10,
		RankingFresh:    3,
		RankingTotal:    10,
	})

	require.Len(t, alerts, 1)
	assert.Equal(t, AlertHighPassRate, alerts[0].Type)
}

func TestEvaluate_PassRateNeedsSample(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	// 2 acted-on matches is below the minimum sample, even at 100% pass.
	alerts := a.Evaluate(&Snapshot{
		MatchesTotal:  2,
		MatchesPassed: 2,
		RankingFresh:  3,
		RankingTotal:  10,
	})

	assert.Empty(t, alerts)
}

func TestEvaluate_StaleRankings(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	alerts := a.Evaluate(&Snapshot{
		MatchesTotal: 5,
		RankingFresh: 1,
		RankingTotal: 10,
	})

	require.Len(t, alerts, 1)
	assert.Equal(t, AlertStaleRankings, alerts[0].Type)
}

func TestEvaluate_EmptyCacheIsNotStale(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	alerts := a.Evaluate(&Snapshot{MatchesTotal: 5})

	assert.Empty(t, alerts)
}

func TestSendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	var lastType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var alert Alert
		require.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		lastType = string(alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testMonitoringConfig()
	cfg.WebhookURL = srv.URL
	a := NewAlerter(cfg)

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertEmptyMatchDay, Severity: "high", Timestamp: time.Now()},
	})

	assert.Equal(t, 1, sent)
	assert.Equal(t, int32(1), received.Load())
	assert.Equal(t, string(AlertEmptyMatchDay), lastType)
}

func TestSendAlerts_WebhookFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := testMonitoringConfig()
	cfg.WebhookURL = srv.URL
	a := NewAlerter(cfg)

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertStaleRankings}})

	assert.Equal(t, 0, sent)
}

func TestSendAlerts_NoWebhookLogsOnly(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertEmptyMatchDay}})

	assert.Equal(t, 0, sent)
}
