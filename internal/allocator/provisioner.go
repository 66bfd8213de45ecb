package allocator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/DoyleJ11/pug-queue-backend/internal/engine"
)

// Provisioner asks an external service to spin up a server for the match.
// It is the last source in the chain.
type Provisioner struct {
	url    string
	client *http.Client
}

func NewProvisioner(url string, timeout time.Duration) *Provisioner {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Provisioner{url: url, client: &http.Client{Timeout: timeout}}
}

type provisionRequest struct {
	QueueID string `json:"queue_id"`
	OwnerID string `json:"owner_id"`
	Map     string `json:"map"`
}

type provisionResponse struct {
	ID       string `json:"id"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
}

func (p *Provisioner) Name() string { return "ephemeral" }

func (p *Provisioner) Allocate(ctx context.Context, req engine.AllocationRequest) (*engine.ServerRef, error) {
	body, err := json.Marshal(provisionRequest{QueueID: req.QueueID, OwnerID: req.OwnerID, Map: req.Map})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("provision request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusNotFound:
		return nil, ErrNoServer
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("provisioner returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out provisionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode provisioner response: %w", err)
	}
	if out.ID == "" || out.Host == "" {
		return nil, errors.New("provisioner returned an incomplete server")
	}
	return &engine.ServerRef{ID: out.ID, Host: out.Host, Port: out.Port, Password: out.Password}, nil
}
