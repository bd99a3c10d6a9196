package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kjannette/openarb-backend/internal/httputil"
	"github.com/kjannette/openarb-backend/internal/logging"
	"github.com/kjannette/openarb-backend/internal/metrics"
	"github.com/kjannette/openarb-backend/internal/models"
)

const (
	defaultBotName = "OpenArb"
	queueSize      = 64
)

// Sender posts chat notifications to a Slack or Discord webhook.
type Sender struct {
	webhookURL string
	botName    string
	httpClient *http.Client
	retry      httputil.RetryConfig
	log        *logrus.Entry

	// queue feeds one background worker; events are dropped when it is full.
	queue  chan string
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewSender(webhookURL, botName string, log logrus.FieldLogger) *Sender {
	if botName == "" {
		botName = defaultBotName
	}
	entry := logging.Component(log, "notify")
	s := &Sender{
		webhookURL: webhookURL,
		botName:    botName,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    5 * time.Second,
			Log:         entry,
		},
		log: entry,
	}
	if webhookURL != "" {
		s.queue = make(chan string, queueSize)
		s.wg.Add(1)
		go s.run()
	}
	return s
}

// Send delivers msg synchronously. Failures are logged, never returned.
func (s *Sender) Send(msg string) {
	formatted := fmt.Sprintf("[%s] %s", s.botName, msg)
	s.log.Info(formatted)

	if s.webhookURL == "" {
		return
	}

	body, err := json.Marshal(s.formatPayload(formatted))
	if err != nil {
		s.log.WithError(err).Error("Marshal webhook payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := httputil.Do(ctx, s.httpClient, s.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		s.log.WithError(err).Error("Failed to send notification after retries")
		return
	}
	resp.Body.Close()
}

// WalletConnected and TradeRecorded post in the background so the caller's
// request is not held up by the webhook.
func (s *Sender) WalletConnected(acct models.Account) {
	wt := "unknown"
	if acct.WalletType != nil {
		wt = *acct.WalletType
	}
	s.async(fmt.Sprintf("Wallet connected: %s (%s)", shortAddr(acct.Identity), wt))
}

func (s *Sender) TradeRecorded(owner models.Identity, rec models.TradeRecord) {
	s.async(fmt.Sprintf("Trade %s recorded by %s: %s profit %+.4f",
		rec.ID, shortAddr(owner), rec.TokenPair, rec.Profit))
}

// Wait stops accepting events and blocks until the queued ones are sent.
func (s *Sender) Wait() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		if s.queue != nil {
			close(s.queue)
		}
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Sender) Enabled() bool {
	return s.webhookURL != ""
}

func (s *Sender) async(msg string) {
	if s.queue == nil {
		s.Send(msg)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		metrics.NotificationsDropped.WithLabelValues("closed").Inc()
		return
	}
	select {
	case s.queue <- msg:
	default:
		metrics.NotificationsDropped.WithLabelValues("queue_full").Inc()
		s.log.WithField("message", msg).Warn("Notification queue full, message dropped")
	}
}

func (s *Sender) run() {
	defer s.wg.Done()
	for msg := range s.queue {
		s.Send(msg)
	}
}

func (s *Sender) formatPayload(msg string) map[string]string {
	if strings.Contains(s.webhookURL, "discord") {
		return map[string]string{
			"content":  msg,
			"username": s.botName,
		}
	}
	return map[string]string{
		"text":     fmt.Sprintf("`%s`", msg),
		"username": s.botName,
	}
}

func shortAddr(id models.Identity) string {
	s := string(id)
	if len(s) > 12 {
		return s[:6] + "..." + s[len(s)-4:]
	}
	return s
}
