// Package notify delivers push notifications to member devices through
// the Expo push gateway.
//
// The package has two halves: Gateway, a client for the Expo HTTP API,
// and Server, a small authenticated endpoint the admin surfaces POST to.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// expoPushURL is the Expo push gateway endpoint.
const expoPushURL = "https://exp.host/--/api/v2/push/send"

// Message is one notification to a set of devices.
type Message struct {
	// Tokens are Expo push tokens of the target devices.
	Tokens []string `json:"tokens"`

	Title string `json:"title"`
	Body  string `json:"body"`

	// Data is an optional payload delivered to the app.
	Data map[string]any `json:"data,omitempty"`

	// ImageURL optionally attaches an image to the notification.
	ImageURL string `json:"imageUrl,omitempty"`
}

// Validate checks the message is deliverable.
func (m *Message) Validate() error {
	if len(m.Tokens) == 0 {
		return fmt.Errorf("tokens are required")
	}
	if m.Title == "" {
		return fmt.Errorf("title is required")
	}
	if m.Body == "" {
		return fmt.Errorf("body is required")
	}
	return nil
}

// TicketResult is the per-token delivery outcome.
type TicketResult struct {
	Token string `json:"token"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Receipt aggregates a send.
type Receipt struct {
	Sent    int            `json:"sent"`
	Failed  int            `json:"failed"`
	Results []TicketResult `json:"results"`
}

// Gateway sends messages through the Expo push API.
type Gateway struct {
	url  string
	http *http.Client
}

// NewGateway creates an Expo gateway client. url overrides the production
// endpoint for tests ("" = production).
func NewGateway(url string) *Gateway {
	if url == "" {
		url = expoPushURL
	}
	return &Gateway{
		url:  url,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

// expoMessage is one entry in the Expo batch request.
type expoMessage struct {
	To    string         `json:"to"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
	Image string         `json:"richContent,omitempty"`
}

// expoResponse is the Expo batch response envelope.
type expoResponse struct {
	Data []struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"data"`
}

// Send delivers one message to every token, returning per-token results.
// A gateway-level failure marks every token failed rather than erroring;
// callers always get a complete receipt.
func (g *Gateway) Send(ctx context.Context, msg Message) (Receipt, error) {
	if err := msg.Validate(); err != nil {
		return Receipt{}, err
	}

	batch := make([]expoMessage, len(msg.Tokens))
	for i, token := range msg.Tokens {
		batch[i] = expoMessage{
			To:    token,
			Title: msg.Title,
			Body:  msg.Body,
			Data:  msg.Data,
			Image: msg.ImageURL,
		}
	}

	body, err := json.Marshal(batch)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to encode push batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return allFailed(msg.Tokens, err.Error()), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return allFailed(msg.Tokens, fmt.Sprintf("gateway status %d: %s", resp.StatusCode, data)), nil
	}

	var parsed expoResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return allFailed(msg.Tokens, "unreadable gateway response"), nil
	}

	receipt := Receipt{Results: make([]TicketResult, len(msg.Tokens))}
	for i, token := range msg.Tokens {
		result := TicketResult{Token: token}
		if i < len(parsed.Data) && parsed.Data[i].Status == "ok" {
			result.OK = true
			receipt.Sent++
		} else {
			if i < len(parsed.Data) {
				result.Error = parsed.Data[i].Message
			} else {
				result.Error = "no ticket returned"
			}
			receipt.Failed++
		}
		receipt.Results[i] = result
	}
	return receipt, nil
}

func allFailed(tokens []string, reason string) Receipt {
	receipt := Receipt{Failed: len(tokens), Results: make([]TicketResult, len(tokens))}
	for i, token := range tokens {
		receipt.Results[i] = TicketResult{Token: token, Error: reason}
	}
	return receipt
}
