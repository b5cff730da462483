package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/talkincode/toughwatch/internal/domain"
	"github.com/talkincode/toughwatch/pkg/common"
)

const maxErrorLen = 100

// Prober performs one check of one service. Implementations never return an
// error and never panic, every failure is captured in the measurement.
type Prober interface {
	Probe(ctx context.Context, srv domain.Service) domain.Measurement
}

type Options struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// NewProbers builds one prober per service. All probers share one HTTP
// client so connections are reused across cycles.
func NewProbers(services []domain.Service, opts Options) (map[string]Prober, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	c := core{client: newHTTPClient(opts.InsecureSkipVerify), timeout: opts.Timeout}
	out := make(map[string]Prober, len(services))
	for _, srv := range services {
		switch srv.Type {
		case domain.CheckTypeHTTP, "":
			out[srv.Name] = &HTTPProber{c}
		case domain.CheckTypeAPI:
			out[srv.Name] = &APIProber{c}
		default:
			return nil, fmt.Errorf("service %q: unknown check type %q", srv.Name, srv.Type)
		}
	}
	return out, nil
}

func newHTTPClient(insecure bool) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			TLSClientConfig:     &tls.Config{InsecureSkipVerify: insecure},
			MaxIdleConnsPerHost: 4,
		},
	}
}

type core struct {
	client  *http.Client
	timeout time.Duration
}

// do runs the request and classifies the outcome. A response matching the
// expected status, or any 2xx/3xx, counts as success. Redirects follow the
// client default limit of 10.
func (c core) do(ctx context.Context, srv domain.Service, decorate func(*http.Request), validate func(*http.Response) string) domain.Measurement {
	m := domain.Measurement{Service: srv.Name}
	pctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	start := time.Now()
	req, err := http.NewRequestWithContext(pctx, srv.Method, srv.URL, nil)
	if err != nil {
		m.Timestamp = time.Now()
		m.Error = common.TruncateString(err.Error(), maxErrorLen)
		return m
	}
	req.Header.Set("User-Agent", "toughwatch/1.0")
	if decorate != nil {
		decorate(req)
	}
	resp, err := c.client.Do(req)
	m.Timestamp = time.Now()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			m.Latency = c.timeout
			m.Error = "request timed out"
		} else {
			m.Latency = time.Since(start)
			m.Error = common.TruncateString(err.Error(), maxErrorLen)
		}
		return m
	}
	defer func() {
		// drain so the keep-alive connection goes back to the pool
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
	}()
	m.Latency = time.Since(start)
	code := resp.StatusCode
	m.StatusCode = &code
	if code != srv.ExpectedStatus && (code < 200 || code >= 400) {
		m.Error = fmt.Sprintf("HTTP %d", code)
		return m
	}
	if validate != nil {
		if msg := validate(resp); msg != "" {
			m.Error = msg
			return m
		}
	}
	m.Success = true
	return m
}

// HTTPProber issues a plain request and checks the status code.
type HTTPProber struct {
	core
}

func (p *HTTPProber) Probe(ctx context.Context, srv domain.Service) domain.Measurement {
	return p.do(ctx, srv, nil, nil)
}

// APIProber additionally negotiates JSON and rejects responses that carry a
// non-JSON content type.
type APIProber struct {
	core
}

func (p *APIProber) Probe(ctx context.Context, srv domain.Service) domain.Measurement {
	return p.do(ctx, srv,
		func(req *http.Request) {
			req.Header.Set("Accept", "application/json")
		},
		func(resp *http.Response) string {
			ct := resp.Header.Get("Content-Type")
			if ct != "" && !strings.Contains(ct, "json") {
				return common.TruncateString("unexpected content type "+ct, maxErrorLen)
			}
			return ""
		})
}
