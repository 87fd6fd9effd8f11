package transport

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-kit/kit/metrics"

	"github.com/jnikolaeva/kongclient/internal/kong/application"
)

var jpeg = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

type recordedRequest struct {
	method      string
	path        string
	contentType string
	body        []byte
}

// newKongServer answers every request with status and body and records the
// last request it saw.
func newKongServer(t *testing.T, status int, body string) (*httptest.Server, *recordedRequest, *int32) {
	t.Helper()
	var hits int32
	rec := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		data, _ := io.ReadAll(r.Body)
		*rec = recordedRequest{
			method:      r.Method,
			path:        r.URL.Path,
			contentType: r.Header.Get("Content-Type"),
			body:        data,
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, rec, &hits
}

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	c, err := NewClient(baseURL, opts...)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	return c
}

func accountInput() application.AccountCreationInput {
	email := "bob@x.com"
	return application.AccountCreationInput{Username: "bob", Email: &email, Password: "longenough1"}
}

func propertyInput() application.PropertyCreationInput {
	return application.PropertyCreationInput{
		Name:        "Cottage",
		Bedrooms:    2,
		Bathrooms:   1,
		Sqft:        820.5,
		Address:     "1 Main St",
		Agent:       7,
		Description: "Small and cozy",
		Photos: []application.Photo{
			{Filename: "front.jpg", Content: jpeg},
			{Filename: "back.jpg", Content: jpeg},
		},
	}
}

func TestCreateAccountReturnsParsedBody(t *testing.T) {
	srv, rec, _ := newKongServer(t, http.StatusCreated, `{"username":"bob"}`)
	c := newTestClient(t, srv.URL)

	account, err := c.CreateAccount(context.Background(), accountInput())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if account.Username != "bob" {
		t.Fatalf("expected username bob, got %s", account.Username)
	}
	if rec.method != http.MethodPost || rec.path != "/accounts" {
		t.Fatalf("expected POST /accounts, got %s %s", rec.method, rec.path)
	}
	if !strings.HasPrefix(rec.contentType, "application/json") {
		t.Fatalf("expected json content type, got %s", rec.contentType)
	}
	want := `{"username":"bob","email":"bob@x.com","password":"longenough1"}`
	if strings.TrimSpace(string(rec.body)) != want {
		t.Fatalf("expected body %s, got %s", want, rec.body)
	}
}

func TestCreateAccountOmitsMissingEmail(t *testing.T) {
	srv, rec, _ := newKongServer(t, http.StatusCreated, `{"username":"bob"}`)
	c := newTestClient(t, srv.URL)

	in := application.AccountCreationInput{Username: "bob", Password: "longenough1"}
	if _, err := c.CreateAccount(context.Background(), in); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if strings.Contains(string(rec.body), "email") {
		t.Fatalf("expected no email key, got %s", rec.body)
	}
}

func TestStatusMapping(t *testing.T) {
	ctx := context.Background()
	auth := application.AccountAuthInput{Username: "bob", Password: "longenough1"}

	operations := map[string]func(c *Client) error{
		"create_account": func(c *Client) error { _, err := c.CreateAccount(ctx, accountInput()); return err },
		"authenticate":   func(c *Client) error { _, err := c.Authenticate(ctx, auth); return err },
		"submit":         func(c *Client) error { _, err := c.SubmitProperty(ctx, propertyInput()); return err },
		"get":            func(c *Client) error { _, err := c.GetProperties(ctx); return err },
	}

	tests := []struct {
		operation string
		status    int
		err       error
	}{
		{"create_account", http.StatusBadRequest, application.ErrInvalidInput},
		{"create_account", http.StatusUnauthorized, application.ErrInvalidInput},
		{"create_account", http.StatusInternalServerError, application.ErrInternalServer},
		{"create_account", http.StatusNotFound, application.ErrUnexpectedStatus},
		{"create_account", http.StatusOK, application.ErrUnexpectedStatus},
		{"authenticate", http.StatusBadRequest, application.ErrInvalidInput},
		{"authenticate", http.StatusUnauthorized, application.ErrInvalidInput},
		{"authenticate", http.StatusNotFound, application.ErrAccountNotFound},
		{"authenticate", http.StatusInternalServerError, application.ErrInternalServer},
		{"authenticate", http.StatusTeapot, application.ErrUnexpectedStatus},
		{"submit", http.StatusBadRequest, application.ErrInvalidInput},
		{"submit", http.StatusUnauthorized, application.ErrUnauthorized},
		{"submit", http.StatusNotFound, application.ErrAccountNotFound},
		{"submit", http.StatusInternalServerError, application.ErrInternalServer},
		{"submit", http.StatusBadGateway, application.ErrUnexpectedStatus},
		{"get", http.StatusBadRequest, application.ErrInvalidInput},
		{"get", http.StatusUnauthorized, application.ErrUnauthorized},
		{"get", http.StatusNotFound, application.ErrAccountNotFound},
		{"get", http.StatusInternalServerError, application.ErrInternalServer},
		{"get", http.StatusCreated, application.ErrUnexpectedStatus},
	}

	for _, tt := range tests {
		t.Run(tt.operation+"_"+http.StatusText(tt.status), func(t *testing.T) {
			srv, _, _ := newKongServer(t, tt.status, `{"msg":"nope"}`)
			err := operations[tt.operation](newTestClient(t, srv.URL))
			if !errors.Is(err, tt.err) {
				t.Fatalf("expected %v, got %v", tt.err, err)
			}
			var respErr *ResponseError
			if !errors.As(err, &respErr) {
				t.Fatalf("expected *ResponseError, got %T", err)
			}
			if respErr.StatusCode != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, respErr.StatusCode)
			}
			if respErr.Message != "nope" {
				t.Fatalf("expected message nope, got %q", respErr.Message)
			}
		})
	}
}

func TestAuthenticateAccountNotFound(t *testing.T) {
	srv, rec, _ := newKongServer(t, http.StatusNotFound, `{"msg":"Could not get account"}`)
	c := newTestClient(t, srv.URL)

	_, err := c.Authenticate(context.Background(), application.AccountAuthInput{Username: "bob", Password: "longenough1"})
	if !errors.Is(err, application.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if rec.path != "/auth" {
		t.Fatalf("expected /auth, got %s", rec.path)
	}
}

func TestAuthenticateAcceptsEmptyBody(t *testing.T) {
	srv, _, _ := newKongServer(t, http.StatusOK, "")
	c := newTestClient(t, srv.URL)

	session, err := c.Authenticate(context.Background(), application.AccountAuthInput{Username: "bob", Password: "longenough1"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if *session != (application.Session{}) {
		t.Fatalf("expected empty session, got %+v", session)
	}
}

func TestMalformedSuccessBody(t *testing.T) {
	srv, _, _ := newKongServer(t, http.StatusCreated, `{"username":`)
	c := newTestClient(t, srv.URL)

	_, err := c.CreateAccount(context.Background(), accountInput())
	if err == nil || !strings.Contains(err.Error(), "failed to decode response body") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestValidationFailsBeforeRequest(t *testing.T) {
	srv, _, hits := newKongServer(t, http.StatusCreated, `{}`)
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	if _, err := c.CreateAccount(ctx, application.AccountCreationInput{Username: "bob", Password: "short"}); !errors.Is(err, application.ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
	if _, err := c.Authenticate(ctx, application.AccountAuthInput{Username: "", Password: "longenough1"}); !errors.Is(err, application.ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
	if _, err := c.SubmitProperty(ctx, application.PropertyCreationInput{}); !errors.Is(err, application.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if n := atomic.LoadInt32(hits); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}
}

func TestTransportErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	c := newTestClient(t, baseURL)
	_, err := c.CreateAccount(context.Background(), accountInput())
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		t.Fatalf("expected *url.Error, got %T: %v", err, err)
	}
}

func TestSubmitPropertyEncodesMultipartForm(t *testing.T) {
	srv, rec, _ := newKongServer(t, http.StatusCreated, `{"name":"Cottage","bedrooms":2}`)
	c := newTestClient(t, srv.URL)

	property, err := c.SubmitProperty(context.Background(), propertyInput())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if property.Name != "Cottage" || property.Bedrooms != 2 {
		t.Fatalf("expected parsed property, got %+v", property)
	}

	form := parseMultipart(t, rec)
	want := map[string]string{
		"name":        "Cottage",
		"bedrooms":    "2",
		"bathrooms":   "1",
		"sqft":        "820.5",
		"address":     "1 Main St",
		"agentid":     "7",
		"description": "Small and cozy",
	}
	for key, value := range want {
		if got := form.Value[key]; len(got) != 1 || got[0] != value {
			t.Fatalf("expected %s=%s, got %v", key, value, got)
		}
	}
	if _, ok := form.Value["price"]; ok {
		t.Fatalf("expected no price field, got %v", form.Value["price"])
	}

	for i, name := range []string{"front.jpg", "back.jpg"} {
		key := "photo_" + string(rune('0'+i))
		files := form.File[key]
		if len(files) != 1 || files[0].Filename != name {
			t.Fatalf("expected %s to carry %s, got %v", key, name, files)
		}
		if ct := files[0].Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Fatalf("expected image/jpeg, got %s", ct)
		}
	}
}

func TestSubmitPropertyIncludesPrice(t *testing.T) {
	srv, rec, _ := newKongServer(t, http.StatusCreated, `{}`)
	c := newTestClient(t, srv.URL)

	in := propertyInput()
	price := 250000.0
	in.Price = &price
	if _, err := c.SubmitProperty(context.Background(), in); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	form := parseMultipart(t, rec)
	if got := form.Value["price"]; len(got) != 1 || got[0] != "250000" {
		t.Fatalf("expected price=250000, got %v", got)
	}
}

func TestSubmitPropertyDoesNotMutateInput(t *testing.T) {
	srv, _, _ := newKongServer(t, http.StatusCreated, `{}`)
	c := newTestClient(t, srv.URL)

	in := propertyInput()
	price := 99.5
	in.Price = &price
	before := propertyInput()
	before.Price = &price

	if _, err := c.SubmitProperty(context.Background(), in); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !reflect.DeepEqual(in, before) || price != 99.5 {
		t.Fatalf("expected input to be unchanged, got %+v", in)
	}
}

func TestGetProperties(t *testing.T) {
	srv, rec, _ := newKongServer(t, http.StatusOK, `[{"name":"Cottage"},{"name":"Villa","price":10}]`)
	c := newTestClient(t, srv.URL)

	properties, err := c.GetProperties(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(properties) != 2 || properties[1].Name != "Villa" || properties[1].Price == nil || *properties[1].Price != 10 {
		t.Fatalf("expected two properties, got %+v", properties)
	}
	if rec.method != http.MethodGet || rec.path != "/properties" {
		t.Fatalf("expected GET /properties, got %s %s", rec.method, rec.path)
	}
}

func TestCustomEndpointsAndBasePath(t *testing.T) {
	srv, rec, _ := newKongServer(t, http.StatusOK, ``)
	endpoints := DefaultEndpoints()
	endpoints.Auth = "/login"
	c := newTestClient(t, srv.URL+"/api/", WithEndpoints(endpoints))

	if _, err := c.Authenticate(context.Background(), application.AccountAuthInput{Username: "bob", Password: "longenough1"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.path != "/api/login" {
		t.Fatalf("expected /api/login, got %s", rec.path)
	}
}

func TestNewClientRejectsInvalidBaseURL(t *testing.T) {
	for _, baseURL := range []string{"", "localhost", "://nope"} {
		if _, err := NewClient(baseURL); err == nil {
			t.Fatalf("expected error for %q, got no error", baseURL)
		}
	}
}

type countingCounter struct {
	labels [][]string
}

func (c *countingCounter) With(labelValues ...string) metrics.Counter {
	c.labels = append(c.labels, labelValues)
	return c
}

func (c *countingCounter) Add(float64) {}

type nopHistogram struct{}

func (h nopHistogram) With(...string) metrics.Histogram { return h }

func (nopHistogram) Observe(float64) {}

func TestMetricsRecordStatusCode(t *testing.T) {
	srv, _, _ := newKongServer(t, http.StatusInternalServerError, ``)
	counter := &countingCounter{}
	c := newTestClient(t, srv.URL, WithMetrics(NewMetrics(counter, nopHistogram{})))

	_, _ = c.GetProperties(context.Background())

	want := []string{"method", "GET", "endpoint", "get_properties", "status_code", "500"}
	if len(counter.labels) != 1 || !reflect.DeepEqual(counter.labels[0], want) {
		t.Fatalf("expected labels %v, got %v", want, counter.labels)
	}
}

func parseMultipart(t *testing.T, rec *recordedRequest) *multipart.Form {
	t.Helper()
	mediaType, params, err := mime.ParseMediaType(rec.contentType)
	if err != nil || mediaType != "multipart/form-data" {
		t.Fatalf("expected multipart/form-data, got %s", rec.contentType)
	}
	form, err := multipart.NewReader(strings.NewReader(string(rec.body)), params["boundary"]).ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	return form
}
