// Package notify holds the delivery adapters behind port.Notifier.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
	"github.com/boddenberg/grambank-ledger-go/internal/infra/resilience"
)

var tracer = otel.Tracer("infra/notify")

type smsRequest struct {
	To        string `json:"to"`
	Body      string `json:"body"`
	Reference string `json:"reference"`
}

// SMSClient posts notifications to an HTTP SMS gateway.
type SMSClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewSMSClient creates a new SMSClient.
func NewSMSClient(httpClient *http.Client, baseURL, apiKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *SMSClient {
	return &SMSClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		cb:         cb,
		cfg:        cfg,
	}
}

// Send delivers one message. 4xx answers are not retried.
func (c *SMSClient) Send(ctx context.Context, n *domain.Notification) error {
	ctx, span := tracer.Start(ctx, "SMSClient.Send")
	defer span.End()
	span.SetAttributes(attribute.String("notification.kind", string(n.Kind)))

	body, err := json.Marshal(smsRequest{To: n.To, Body: n.Body, Reference: n.ID})
	if err != nil {
		return err
	}

	_, err = c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			url := fmt.Sprintf("%s/v1/messages", c.baseURL)
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return resilience.Permanent(err)
			}
			httpReq.Header.Set("Content-Type", "application/json")
			if c.apiKey != "" {
				httpReq.Header.Set("X-API-Key", c.apiKey)
			}

			resp, err := c.httpClient.Do(httpReq)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return nil
			case resp.StatusCode >= 400 && resp.StatusCode < 500:
				return resilience.Permanent(fmt.Errorf("sms gateway rejected message: status %d", resp.StatusCode))
			default:
				return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
			}
		})
	})
	if err != nil {
		span.RecordError(err)
		return &domain.ErrExternalService{Service: "sms", Err: err}
	}
	return nil
}
