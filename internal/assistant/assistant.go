// Package assistant talks to the generative-text service that answers
// "hey huybeo" prompts. Every failure degrades to a fixed reply.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel    = "gemini-1.5-flash"
	DefaultTimeout  = 20 * time.Second

	NoKeyReply   = "I have no brain! (Please set GEMINI_API_KEY in the server environment)"
	ErrorReply   = "My brain hurts (API Error)."
	EmptyReply   = "I'm lost for words..."
	GreetReply   = "Yes? How can I help you?"
	maxReplyBody = 1 << 20
)

const promptTemplate = `You are Huybeo, a helpful, friendly, and slightly witty AI assistant in a classroom chatroom.
User says: %q.
Keep your response concise and chatty (under 200 characters if possible).`

type Client struct {
	apiKey   string
	endpoint string
	model    string
	http     *http.Client
	log      *log.Logger
}

type Option func(*Client)

func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func NewClient(apiKey string, logger *log.Logger, opts ...Option) *Client {
	c := &Client{
		apiKey:   apiKey,
		endpoint: DefaultEndpoint,
		model:    DefaultModel,
		http:     &http.Client{Timeout: DefaultTimeout},
		log:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

// Ask sends prompt to the model and returns its answer, or one of the fixed
// fallback replies. It never returns an error.
func (c *Client) Ask(ctx context.Context, prompt string) string {
	if c.apiKey == "" {
		return NoKeyReply
	}

	text, err := c.generate(ctx, prompt)
	if err != nil {
		c.log.Println("assistant:", err)
		return ErrorReply
	}

	if text == "" {
		return EmptyReply
	}
	return text
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: fmt.Sprintf(promptTemplate, prompt)}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	u := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.endpoint, url.PathEscape(c.model), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// the request URL carries the key
		if uerr, ok := err.(*url.Error); ok {
			err = uerr.Err
		}
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var gr generateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReplyBody)).Decode(&gr); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return gr.Candidates[0].Content.Parts[0].Text, nil
}
