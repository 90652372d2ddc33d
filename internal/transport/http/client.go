package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/qakkaio/qakka/internal/facade"
	"github.com/qakkaio/qakka/internal/message"
	"github.com/qakkaio/qakka/pkg/qerrors"
)

// Client implements facade.Forwarder over HTTP: a send whose destRegion
// is hosted by a peer process gets POSTed to that peer's forward
// endpoint, per §4.5's "forward to a peer in destRegion" rule. The
// transport is otelhttp-wrapped so the forwarded request carries the
// originating span, mirroring nuetzliches-hookaido's client-side
// instrumentation.
type Client struct {
	httpClient *http.Client
	peers      map[string]string
}

var _ facade.Forwarder = (*Client)(nil)

// NewClient builds a Client that resolves destRegion to a base URL via
// peers (region name -> "http://host:port"), the same Config.Peers map
// the runtime loads from config.
func NewClient(peers map[string]string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		peers: peers,
	}
}

func (c *Client) Forward(destRegion string, queue string, messageID uuid.UUID, body message.Body, delayMs int64) error {
	base, ok := c.peers[destRegion]
	if !ok {
		return qerrors.Fatal("transport/http: no peer configured for region %q", destRegion)
	}

	payload := forwardRequest{
		Queue:       queue,
		MessageID:   messageID.String(),
		Blob:        body.Blob,
		ContentType: body.ContentType,
		DelayMs:     delayMs,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return qerrors.Fatal("transport/http: encode forward request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/regions/%s/forward/", base, destRegion)
	ctx, cancel := context.WithTimeout(context.Background(), c.httpClient.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return qerrors.Fatal("transport/http: build forward request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return qerrors.Transient("transport/http: forward to %q: %w", destRegion, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		b, _ := io.ReadAll(resp.Body)
		return qerrors.Transient("transport/http: peer %q returned %d: %s", destRegion, resp.StatusCode, b)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		b, _ := io.ReadAll(resp.Body)
		return qerrors.Fatal("transport/http: peer %q rejected forward (%d): %s", destRegion, resp.StatusCode, b)
	}
	return nil
}
