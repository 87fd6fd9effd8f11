package transport

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/pkg/errors"

	"github.com/jnikolaeva/kongclient/internal/kong/application"
)

// Client talks to the kong accounts, auth and properties API. The session
// cookie set by Authenticate is kept in the HTTP client's cookie jar and sent
// along with later property requests.
type Client struct {
	createAccount  endpoint.Endpoint
	authenticate   endpoint.Endpoint
	submitProperty endpoint.Endpoint
	getProperties  endpoint.Endpoint
}

type Option func(*options)

type options struct {
	httpClient httptransport.HTTPClient
	endpoints  Endpoints
	logger     log.Logger
	metrics    *Metrics
}

// WithHTTPClient replaces the default cookie-jar backed http.Client.
func WithHTTPClient(c httptransport.HTTPClient) Option {
	return func(o *options) { o.httpClient = c }
}

func WithEndpoints(e Endpoints) Option {
	return func(o *options) { o.endpoints = e }
}

func WithLogger(logger log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// NewHTTPClient returns an http.Client with its own cookie jar. A zero
// timeout means no timeout.
func NewHTTPClient(timeout time.Duration) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &http.Client{Jar: jar, Timeout: timeout}, nil
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid base url '%s'", baseURL)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("invalid base url '%s'", baseURL)
	}

	o := options{
		endpoints: DefaultEndpoints(),
		logger:    log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		if o.httpClient, err = NewHTTPClient(0); err != nil {
			return nil, err
		}
	}

	makeEndpoint := func(name, method, path string, t statusTable, enc httptransport.EncodeRequestFunc, newBody func() interface{}) endpoint.Endpoint {
		e := httptransport.NewClient(
			method,
			resolve(base, path),
			enc,
			decodeResponse(t, newBody),
			httptransport.SetClient(o.httpClient),
		).Endpoint()
		e = loggingMiddleware(log.With(o.logger, "method", method, "endpoint", name))(e)
		if o.metrics != nil {
			e = o.metrics.middleware(method, name, t.success)(e)
		}
		return e
	}

	return &Client{
		createAccount: makeEndpoint("create_account", http.MethodPost, o.endpoints.Accounts, createAccountStatus,
			httptransport.EncodeJSONRequest, func() interface{} { return new(application.Account) }),
		authenticate: makeEndpoint("authenticate", http.MethodPost, o.endpoints.Auth, authenticateStatus,
			httptransport.EncodeJSONRequest, func() interface{} { return new(application.Session) }),
		submitProperty: makeEndpoint("submit_property", http.MethodPost, o.endpoints.Properties, submitPropertyStatus,
			encodePropertyRequest, func() interface{} { return new(application.Property) }),
		getProperties: makeEndpoint("get_properties", http.MethodGet, o.endpoints.Properties, getPropertiesStatus,
			encodeNoBody, func() interface{} { return new([]application.Property) }),
	}, nil
}

// resolve appends path to the base URL path, so a base of
// "http://host/api" and "/accounts" give "http://host/api/accounts".
func resolve(base *url.URL, path string) *url.URL {
	u := *base
	u.Path = strings.TrimRight(base.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawPath = ""
	return &u
}

// CreateAccount validates in and posts it as JSON.
func (c *Client) CreateAccount(ctx context.Context, in application.AccountCreationInput) (*application.Account, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	resp, err := c.createAccount(ctx, in)
	if err != nil {
		return nil, err
	}
	return resp.(*application.Account), nil
}

// Authenticate validates the credentials and logs in.
func (c *Client) Authenticate(ctx context.Context, in application.AccountAuthInput) (*application.Session, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	resp, err := c.authenticate(ctx, in)
	if err != nil {
		return nil, err
	}
	return resp.(*application.Session), nil
}

// SubmitProperty validates in and posts it as a multipart form, photos
// attached as photo_<index> file parts.
func (c *Client) SubmitProperty(ctx context.Context, in application.PropertyCreationInput) (*application.Property, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	resp, err := c.submitProperty(ctx, in)
	if err != nil {
		return nil, err
	}
	return resp.(*application.Property), nil
}

func (c *Client) GetProperties(ctx context.Context) ([]application.Property, error) {
	resp, err := c.getProperties(ctx, nil)
	if err != nil {
		return nil, err
	}
	return *resp.(*[]application.Property), nil
}
