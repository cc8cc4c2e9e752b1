package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/synastry-app/synastry-api/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertEmptyMatchDay AlertType = "empty_match_day"
	AlertHighPassRate  AlertType = "high_pass_rate"
	AlertStaleRankings AlertType = "stale_rankings"
)

// minActedSample is the minimum number of acted-on matches before the pass
// rate is judged at all.
const minActedSample = 5

// Alert is a single threshold breach to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates snapshots against configured thresholds and sends alerts
// to a webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates an alerter from the monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if snap.MatchesTotal == 0 {
		alerts = append(alerts, Alert{
			Type:     AlertEmptyMatchDay,
			Severity: "high",
			Message:  fmt.Sprintf("no daily matches exist for %s", snap.MatchDate),
			Details: map[string]any{
				"match_date": snap.MatchDate,
			},
			Timestamp: now,
		})
	}

	acted := snap.MatchesAccepted + snap.MatchesPassed
	if acted >= minActedSample {
		passRate := float64(snap.MatchesPassed) / float64(acted)
		if passRate > a.cfg.PassRateThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertHighPassRate,
				Severity: "medium",
				Message:  fmt.Sprintf("pass rate %.0f%% exceeds threshold %.0f%%", passRate*100, a.cfg.PassRateThreshold*100),
				Details: map[string]any{
					"match_date": snap.MatchDate,
					"passed":     snap.MatchesPassed,
					"accepted":   snap.MatchesAccepted,
					"pass_rate":  passRate,
				},
				Timestamp: now,
			})
		}
	}

	if snap.RankingTotal > 0 {
		freshRatio := float64(snap.RankingFresh) / float64(snap.RankingTotal)
		if freshRatio < a.cfg.FreshCacheMinRatio {
			alerts = append(alerts, Alert{
				Type:     AlertStaleRankings,
				Severity: "medium",
				Message:  fmt.Sprintf("only %.0f%% of ranking cache rows are fresh", freshRatio*100),
				Details: map[string]any{
					"fresh": snap.RankingFresh,
					"total": snap.RankingTotal,
				},
				Timestamp: now,
			})
		}
	}

	return alerts
}

// SendAlerts posts each alert to the configured webhook and returns how many
// were delivered. Without a webhook URL alerts are only logged.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	log := zap.L().With(zap.String("component", "monitoring.alerter"))

	sent := 0
	for _, alert := range alerts {
		log.Warn("alert triggered",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
			zap.String("message", alert.Message),
		)

		if a.cfg.WebhookURL == "" {
			continue
		}
		if err := a.post(ctx, alert); err != nil {
			log.Error("failed to deliver alert", zap.String("type", string(alert.Type)), zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

func (a *Alerter) post(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
