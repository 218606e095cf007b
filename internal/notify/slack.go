// Package notify posts assignment results to each hospital's Slack channel.
package notify

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// WebhookSource resolves the incoming-webhook URL of a hospital.
type WebhookSource interface {
	WebhookURL(hospitalID int64) (string, bool)
}

// StaticWebhooks is a fixed hospital to URL map.
type StaticWebhooks map[int64]string

func (s StaticWebhooks) WebhookURL(hospitalID int64) (string, bool) {
	url, ok := s[hospitalID]
	return url, ok && url != ""
}

type Slack struct {
	client *http.Client
	hooks  WebhookSource
	log    *zap.Logger
}

func NewSlack(hooks WebhookSource, timeout time.Duration, log *zap.Logger) *Slack {
	return &Slack{
		client: &http.Client{Timeout: timeout},
		hooks:  hooks,
		log:    log,
	}
}

// FormatAssignedOrder appends the assigned doctor to the original order text.
func FormatAssignedOrder(rawText, doctorName string) string {
	return rawText + " / " + doctorName
}

type slackPayload struct {
	Text string `json:"text"`
}

// Send posts text to the hospital's webhook. It never returns an error: a
// missing webhook or any delivery failure is logged and reported as false.
func (s *Slack) Send(ctx context.Context, hospitalID int64, text string) bool {
	url, ok := s.hooks.WebhookURL(hospitalID)
	if !ok {
		s.log.Warn("no slack webhook configured, notification disabled",
			zap.Int64("hospital_id", hospitalID),
		)
		return false
	}

	body, err := json.Marshal(slackPayload{Text: text})
	if err != nil {
		s.log.Error("encode slack payload", zap.Error(err))
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		s.log.Error("build slack request",
			zap.Int64("hospital_id", hospitalID),
			zap.Error(err),
		)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warn("slack delivery failed",
			zap.Int64("hospital_id", hospitalID),
			zap.Error(err),
		)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		s.log.Warn("slack rejected message",
			zap.Int64("hospital_id", hospitalID),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", detail),
		)
		return false
	}

	s.log.Info("slack message sent", zap.Int64("hospital_id", hospitalID))
	return true
}
