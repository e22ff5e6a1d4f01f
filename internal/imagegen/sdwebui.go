package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	"siksha/internal/services"
)

// SDWebUI calls the AUTOMATIC1111 txt2img endpoint.
type SDWebUI struct {
	BaseURL string
	Params  Params
	Limit   time.Duration
	Client  *http.Client
}

type txt2imgRequest struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt"`
	Steps          int     `json:"steps"`
	CFGScale       float64 `json:"cfg_scale"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	BatchSize      int     `json:"batch_size"`
}

type txt2imgResponse struct {
	Images []string `json:"images"`
}

func (p *SDWebUI) Name() string { return "sdwebui" }

func (p *SDWebUI) Timeout() time.Duration { return p.Limit }

func (p *SDWebUI) Attempt(ctx context.Context, req Request) (image.Image, error) {
	body, err := json.Marshal(txt2imgRequest{
		Prompt:         Enhance(req.Prompt),
		NegativePrompt: p.Params.NegativePrompt,
		Steps:          p.Params.Steps,
		CFGScale:       p.Params.Guidance,
		Width:          p.Params.Width,
		Height:         p.Params.Height,
		BatchSize:      1,
	})
	if err != nil {
		return nil, fmt.Errorf("encode txt2img request: %w", err)
	}
	endpoint := strings.TrimRight(p.BaseURL, "/") + "/sdapi/v1/txt2img"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, StageName, p.Name(), "invalid endpoint", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := httpClient(p.Client).Do(httpReq)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, StageName, p.Name(), "server unreachable", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, StageName, p.Name(), "read response", err)
	}
	if err := statusError(p.Name(), resp.StatusCode, payload); err != nil {
		return nil, err
	}

	var decoded txt2imgResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, services.Wrap(services.ErrMalformedOutput, StageName, p.Name(), "decode response", err)
	}
	if len(decoded.Images) == 0 {
		return nil, services.Wrap(services.ErrMalformedOutput, StageName, p.Name(), "response carried no images", nil)
	}
	encoded := decoded.Images[0]
	// Some builds prefix a data URI header.
	if _, rest, ok := strings.Cut(encoded, ","); ok && strings.HasPrefix(encoded, "data:") {
		encoded = rest
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, services.Wrap(services.ErrMalformedOutput, StageName, p.Name(), "decode base64 image", err)
	}
	return decode(p.Name(), raw)
}

func statusError(provider string, status int, body []byte) error {
	if status < http.StatusMultipleChoices {
		return nil
	}
	snippet := strings.Join(strings.Fields(string(body)), " ")
	if len(snippet) > 200 {
		snippet = snippet[:200] + "..."
	}
	msg := fmt.Sprintf("http %d: %s", status, snippet)
	if exhausted(status, snippet) {
		return services.Wrap(services.ErrResourceExhausted, StageName, provider, msg, nil)
	}
	return services.Wrap(services.ErrExternalTool, StageName, provider, msg, nil)
}

func httpClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return http.DefaultClient
}
