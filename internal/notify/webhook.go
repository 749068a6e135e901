package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// WebhookSender posts low-stock alerts to an external webhook. Delivery is
// best-effort: the caller logs failures and moves on, a sale never waits on
// a notification.
type WebhookSender struct {
	url        string
	recipient  string
	httpClient *http.Client
	logger     *zerolog.Logger
}

type alertMessage struct {
	Type      string    `json:"type"`
	Recipient string    `json:"recipient,omitempty"`
	Product   string    `json:"product"`
	Stock     int       `json:"stock"`
	SentAt    time.Time `json:"sent_at"`
}

func NewWebhookSender(url, recipient string, logger *zerolog.Logger) *WebhookSender {
	return &WebhookSender{
		url:        url,
		recipient:  recipient,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// SendLowStockAlert delivers one alert. Returns an error only so callers can
// log it; nothing retries these.
func (s *WebhookSender) SendLowStockAlert(ctx context.Context, productName string, stock int) error {
	if s.url == "" {
		s.logger.Debug().Str("product", productName).Msg("alert webhook not configured, skipping")
		return nil
	}

	payload, err := json.Marshal(alertMessage{
		Type:      "low_stock",
		Recipient: s.recipient,
		Product:   productName,
		Stock:     stock,
		SentAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}

	s.logger.Info().Str("product", productName).Int("stock", stock).Msg("low stock alert delivered")
	return nil
}
