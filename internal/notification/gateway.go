package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/geonotify/geonotify/internal/device"
	"github.com/geonotify/geonotify/internal/provider/resilience"
)

// GatewayConfig configures a GatewaySender.
type GatewayConfig struct {
	// URL is the push gateway endpoint accepting one message per request.
	URL string

	// RatePerSecond caps outgoing requests. Default: 20
	RatePerSecond float64

	// Client is the resilient HTTP client. If nil a default client is built.
	Client *resilience.Client

	// Metrics may be nil.
	Metrics RequestRecorder

	Logger zerolog.Logger
}

// RequestRecorder receives the outcome of each gateway request.
type RequestRecorder interface {
	RecordRequest(dependency, operation string, duration time.Duration, err error)
}

// GatewaySender delivers push messages through an HTTP push gateway that
// fronts web push, FCM and APNS.
type GatewaySender struct {
	url     string
	client  *resilience.Client
	limiter *rate.Limiter
	metrics RequestRecorder
	logger  zerolog.Logger
}

type gatewayRequest struct {
	Platform string      `json:"platform"`
	Endpoint string      `json:"endpoint"`
	Keys     *gatewayKey `json:"keys,omitempty"`
	Message  PushMessage `json:"message"`
}

type gatewayKey struct {
	P256DH string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// NewGatewaySender creates a push gateway sender.
func NewGatewaySender(cfg GatewayConfig) *GatewaySender {
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 20
	}
	if cfg.Client == nil {
		cfg.Client = resilience.NewClient(resilience.DefaultClientConfig("push-gateway"))
	}
	burst := int(cfg.RatePerSecond)
	if burst < 1 {
		burst = 1
	}

	return &GatewaySender{
		url:     cfg.URL,
		client:  cfg.Client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst),
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
}

// Send implements Sender.
func (s *GatewaySender) Send(ctx context.Context, d *device.Device, msg PushMessage) (err error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	if s.metrics != nil {
		start := time.Now()
		defer func() {
			s.metrics.RecordRequest(s.client.Name(), "send", time.Since(start), err)
		}()
	}

	payload := gatewayRequest{
		Platform: string(d.Platform),
		Endpoint: d.Endpoint,
		Message:  msg,
	}
	if d.P256DH != nil && d.Auth != nil {
		payload.Keys = &gatewayKey{P256DH: *d.P256DH, Auth: *d.Auth}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrEndpointGone
	case resp.StatusCode >= 300:
		return fmt.Errorf("push gateway returned %d", resp.StatusCode)
	}

	s.logger.Debug().Str("device_id", d.ID).Str("platform", string(d.Platform)).Msg("push sent")
	return nil
}

var _ Sender = (*GatewaySender)(nil)
