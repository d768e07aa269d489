package channel

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// LogSMSSender writes text messages to the log instead of sending them
type LogSMSSender struct {
	logger *zap.Logger
}

func NewLogSMSSender(logger *zap.Logger) *LogSMSSender {
	return &LogSMSSender{logger: logger}
}

func (s *LogSMSSender) SendSMS(_ context.Context, phoneNumber, text string) error {
	s.logger.Info("sms", zap.String("to", phoneNumber), zap.String("text", text))
	return nil
}

// HTTPSMSSender posts text messages to an SMS gateway as a form
type HTTPSMSSender struct {
	gatewayURL string
	apiKey     string
	senderID   string
	client     *http.Client
	logger     *zap.Logger
}

func NewHTTPSMSSender(gatewayURL, apiKey, senderID string, timeout time.Duration, logger *zap.Logger) *HTTPSMSSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSMSSender{
		gatewayURL: gatewayURL,
		apiKey:     apiKey,
		senderID:   senderID,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (s *HTTPSMSSender) SendSMS(ctx context.Context, phoneNumber, text string) error {
	start := time.Now()

	form := url.Values{}
	form.Set("senderid", s.senderID)
	form.Set("mobile", phoneNumber)
	form.Set("msg", text)
	form.Set("msgType", "text")
	form.Set("output", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.gatewayURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if s.apiKey != "" {
		req.Header.Set("apikey", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	s.logger.Debug("sms sent",
		zap.String("to", phoneNumber),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}
