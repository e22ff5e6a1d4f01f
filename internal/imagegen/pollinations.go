package imagegen

import (
	"context"
	"hash/fnv"
	"image"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"siksha/internal/services"
)

// Pollinations fetches a rendered image for the prompt over HTTP GET.
type Pollinations struct {
	BaseURL string
	Params  Params
	Limit   time.Duration
	Client  *http.Client
}

func (p *Pollinations) Name() string { return "pollinations" }

func (p *Pollinations) Timeout() time.Duration { return p.Limit }

// URL builds the request address. The seed is derived from the prompt so a
// rerun of the same lesson asks for the same picture.
func (p *Pollinations) URL(req Request) string {
	prompt := Enhance(req.Prompt)
	h := fnv.New32a()
	_, _ = h.Write([]byte(prompt))
	q := url.Values{}
	q.Set("width", strconv.Itoa(p.Params.Width))
	q.Set("height", strconv.Itoa(p.Params.Height))
	q.Set("nologo", "true")
	q.Set("seed", strconv.FormatUint(uint64(h.Sum32()), 10))
	return strings.TrimRight(p.BaseURL, "/") + "/prompt/" + url.PathEscape(prompt) + "?" + q.Encode()
}

func (p *Pollinations) Attempt(ctx context.Context, req Request) (image.Image, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL(req), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, StageName, p.Name(), "invalid endpoint", err)
	}
	resp, err := httpClient(p.Client).Do(httpReq)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, StageName, p.Name(), "service unreachable", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, StageName, p.Name(), "read response", err)
	}
	if err := statusError(p.Name(), resp.StatusCode, payload); err != nil {
		return nil, err
	}
	return decode(p.Name(), payload)
}
