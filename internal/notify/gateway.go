package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// GatewayAdapter pushes sms and whatsapp messages to an HTTP messaging
// gateway. One adapter instance serves one channel. The rate limiter bounds
// outbound calls and the breaker turns a flapping gateway into fast,
// deterministic failures instead of piling up timeouts.
type GatewayAdapter struct {
	BaseURL string
	Token   string
	Channel string

	Client  *http.Client
	Limiter *rate.Limiter
	Breaker *gobreaker.CircuitBreaker
}

func NewGatewayAdapter(baseURL, token, channel string, rps float64, burst int) *GatewayAdapter {
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = 20
	}
	return &GatewayAdapter{
		BaseURL: baseURL,
		Token:   token,
		Channel: channel,
		Client:  &http.Client{Timeout: 10 * time.Second},
		Limiter: rate.NewLimiter(rate.Limit(rps), burst),
		Breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: channel + "-gateway",
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			Timeout: 30 * time.Second,
		}),
	}
}

func (a *GatewayAdapter) Name() string { return a.Channel + "-gateway" }

type gatewayRequest struct {
	To      string `json:"to"`
	Channel string `json:"channel"`
	Body    string `json:"body"`
}

func (a *GatewayAdapter) Send(ctx context.Context, recipient, subject, body string) (bool, error) {
	if a.BaseURL == "" || a.Token == "" {
		return false, fmt.Errorf("%s gateway not configured", a.Channel)
	}
	if a.Client == nil {
		a.Client = &http.Client{Timeout: 10 * time.Second}
	}

	if a.Limiter != nil {
		if err := a.Limiter.Wait(ctx); err != nil {
			return false, err
		}
	}

	call := func() (any, error) {
		return nil, a.post(ctx, recipient, body)
	}
	var err error
	if a.Breaker != nil {
		_, err = a.Breaker.Execute(call)
	} else {
		_, err = call()
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (a *GatewayAdapter) post(ctx context.Context, recipient, body string) error {
	payload, err := json.Marshal(gatewayRequest{To: recipient, Channel: a.Channel, Body: body})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.Token)

	resp, err := a.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}
