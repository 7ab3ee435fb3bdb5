package pokedex

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"pokedex-pipeline/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("internal/pokedex")

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type ClientOptions struct {
	BaseUrl   string
	UserAgent string
	Headers   map[string]string
	// per-request timeout, defaults to 30s
	Timeout time.Duration
	// retries after the first attempt, defaults to 3
	RetryCount       int
	RetryWaitTime    time.Duration
	RetryMaxWaitTime time.Duration
	// global minimum delay between requests, shared by all workers
	// and enforced across retries; zero disables rate limiting
	MinRequestInterval time.Duration
}

// Client wraps the catalog site behind a resty client configured with
// retries, backoff and a shared rate limiter.
type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client
}

func NewClient(opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client.SetHeader("user-agent", userAgent)
	client.SetHeader("accept-language", "en-US")
	for k, v := range opts.Headers {
		client.SetHeader(k, v)
	}
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Second * 30
	}
	client.SetTimeout(timeout)

	retryCount := opts.RetryCount
	if retryCount == 0 {
		retryCount = 3
	}
	retryWait := opts.RetryWaitTime
	if retryWait == 0 {
		retryWait = time.Millisecond * 500
	}
	retryMaxWait := opts.RetryMaxWaitTime
	if retryMaxWait == 0 {
		retryMaxWait = time.Second * 8
	}
	// resty sleeps an exponentially growing, jittered duration between
	// attempts, which covers the backoff policy in one place
	client.SetRetryCount(retryCount)
	client.SetRetryWaitTime(retryWait)
	client.SetRetryMaxWaitTime(retryMaxWait)
	client.AddRetryCondition(func(res *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return retryableStatus(res.StatusCode())
	})

	if opts.MinRequestInterval > 0 {
		limiter := rate.NewLimiter(rate.Every(opts.MinRequestInterval), 1)
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(client, "pokedex/http")

	return &Client{
		BaseUrl: baseUrl,
		Http:    client,
	}, nil
}

// 429 is retried with backoff the same way 5xx is; other 4xx statuses
// indicate a request that will never succeed.
func retryableStatus(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}

// Get fetches one page. A transport failure with retries exhausted, or
// a non-2xx terminal status, is reported as *FetchError.
func (c *Client) Get(ctx context.Context, pageUrl string) ([]byte, int, error) {
	ctx, span := tracer.Start(ctx, "client:Get")
	defer span.End()

	res, err := c.Http.R().SetContext(ctx).Get(pageUrl)
	if err != nil {
		attempts := 1
		if res != nil && res.Request != nil {
			attempts = res.Request.Attempt
		}
		return nil, 0, &FetchError{URL: pageUrl, Attempts: attempts, Err: err}
	}
	if res.StatusCode() != http.StatusOK {
		return nil, res.StatusCode(), &FetchError{
			URL:      pageUrl,
			Status:   res.StatusCode(),
			Attempts: res.Request.Attempt,
		}
	}
	return res.Body(), res.StatusCode(), nil
}
