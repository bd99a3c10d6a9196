package notifications

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/openarb-backend/internal/logging"
	"github.com/kjannette/openarb-backend/internal/metrics"
	"github.com/kjannette/openarb-backend/internal/models"
)

type capture struct {
	mu       sync.Mutex
	payloads []map[string]string
}

func (c *capture) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var p map[string]string
		_ = json.Unmarshal(body, &p)
		c.mu.Lock()
		c.payloads = append(c.payloads, p)
		c.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (c *capture) all() []map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]map[string]string(nil), c.payloads...)
}

func TestSend_NoWebhook(t *testing.T) {
	s := NewSender("", "TestBot", logging.Discard())
	assert.False(t, s.Enabled())
	s.Send("hello from test")
}

func TestSend_SlackFormat(t *testing.T) {
	c := &capture{}
	srv := c.server(t)

	s := NewSender(srv.URL, "TestBot", logging.Discard())
	require.True(t, s.Enabled())
	s.Send("state restored")

	got := c.all()
	require.Len(t, got, 1)
	assert.Equal(t, "TestBot", got[0]["username"])
	assert.Equal(t, "`[TestBot] state restored`", got[0]["text"])
}

func TestSend_DiscordFormat(t *testing.T) {
	c := &capture{}
	srv := c.server(t)

	s := NewSender(srv.URL+"/discord/webhook", "ArbBot", logging.Discard())
	s.Send("trade recorded")

	got := c.all()
	require.Len(t, got, 1)
	assert.Equal(t, "[ArbBot] trade recorded", got[0]["content"])
	_, hasText := got[0]["text"]
	assert.False(t, hasText, "Discord payload should not have 'text' field")
}

func TestSend_WebhookError(t *testing.T) {
	s := NewSender("http://localhost:1/bogus", "TestBot", logging.Discard())
	s.retry.MaxAttempts = 1
	s.Send("this will fail gracefully")
}

func TestDefaultBotName(t *testing.T) {
	s := NewSender("", "", logging.Discard())
	assert.Equal(t, defaultBotName, s.botName)
}

func TestListenerMessages(t *testing.T) {
	c := &capture{}
	srv := c.server(t)
	s := NewSender(srv.URL+"/discord", "ArbBot", logging.Discard())

	wt := "metamask"
	s.WalletConnected(models.Account{Identity: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", WalletType: &wt})
	s.TradeRecorded("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", models.TradeRecord{ID: "trade_7", TokenPair: "ICP/USDC", Profit: -1.25})
	s.Wait()

	var contents []string
	for _, p := range c.all() {
		contents = append(contents, p["content"])
	}
	assert.ElementsMatch(t, []string{
		"[ArbBot] Wallet connected: 0x5aAe...eAed (metamask)",
		"[ArbBot] Trade trade_7 recorded by 0x5aAe...eAed: ICP/USDC profit -1.2500",
	}, contents)
}

func TestListener_BoundedQueueDropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	delivered := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		mu.Lock()
		delivered++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	s := NewSender(srv.URL, "ArbBot", logging.Discard())
	s.retry.MaxAttempts = 1

	dropped := func() float64 {
		return promtest.ToFloat64(metrics.NotificationsDropped.WithLabelValues("queue_full"))
	}
	before := dropped()

	const events = queueSize + 10
	for i := 0; i < events; i++ {
		s.TradeRecorded("0xA11CE", models.TradeRecord{ID: fmt.Sprintf("trade_%d", i+1)})
	}

	lost := int(dropped() - before)
	assert.GreaterOrEqual(t, lost, 9, "at most queueSize plus one in-flight event fit")
	assert.LessOrEqual(t, lost, 10)

	close(release)
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, events-lost, delivered)
}

func TestWait_StopsAcceptingEvents(t *testing.T) {
	c := &capture{}
	srv := c.server(t)
	s := NewSender(srv.URL, "ArbBot", logging.Discard())

	s.Wait()
	s.TradeRecorded("0xA11CE", models.TradeRecord{ID: "trade_1"})
	s.Wait()

	assert.Empty(t, c.all())
}

func TestListenerMessages_KeepOrder(t *testing.T) {
	c := &capture{}
	srv := c.server(t)
	s := NewSender(srv.URL+"/discord", "ArbBot", logging.Discard())

	for i := 1; i <= 5; i++ {
		s.TradeRecorded("0xA11CE", models.TradeRecord{ID: fmt.Sprintf("trade_%d", i), TokenPair: "A/B"})
	}
	s.Wait()

	got := c.all()
	require.Len(t, got, 5)
	for i, p := range got {
		assert.Contains(t, p["content"], fmt.Sprintf("Trade trade_%d ", i+1))
	}
}
