package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	oauthjwt "golang.org/x/oauth2/jwt"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	walletobjects "google.golang.org/api/walletobjects/v1"
)

const (
	// DefaultBaseURL is the walletobjects API root; resource paths are resolved
	// against it by the generated client.
	DefaultBaseURL = "https://walletobjects.googleapis.com/"

	defaultRequestTimeout = 30 * time.Second
	instrumentationName   = "loyaltywallet/wallet"
	loyaltyObjectPath     = "walletobjects/v1/loyaltyObject/{resourceId}"
)

// Client defines the subset of the issuer API the service requires.
type Client interface {
	GetClass(ctx context.Context, classID string) (json.RawMessage, error)
	InsertObject(ctx context.Context, obj *walletobjects.LoyaltyObject) (json.RawMessage, error)
	PatchObject(ctx context.Context, objectID string, patch *walletobjects.LoyaltyObject) (json.RawMessage, error)
	DeleteObject(ctx context.Context, objectID string) error
}

// CallObserver receives one observation per issuer API call.
type CallObserver interface {
	ObserveUpstream(operation, outcome string, status int, elapsed time.Duration)
}

// IssuerClient implements Client with the generated walletobjects service.
type IssuerClient struct {
	svc      *walletobjects.Service
	http     *http.Client
	tracer   trace.Tracer
	duration metric.Float64Histogram
	observer CallObserver
}

// AuthorizedClient returns an HTTP client that attaches bearer tokens minted from
// the service-account JWT config. Token requests and API calls share the
// instrumented transport and the timeout.
func AuthorizedClient(ctx context.Context, conf *oauthjwt.Config, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	base := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   timeout,
	}
	client := conf.Client(context.WithValue(ctx, oauth2.HTTPClient, base))
	client.Timeout = timeout
	return client
}

// NewIssuerClient builds the issuer API client on top of httpClient, which must
// already carry authentication. A nil httpClient falls back to an unauthenticated
// instrumented client, only useful against local emulators.
func NewIssuerClient(ctx context.Context, baseURL string, httpClient *http.Client, observer CallObserver) (*IssuerClient, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   defaultRequestTimeout,
		}
	}
	svc, err := walletobjects.NewService(ctx,
		option.WithHTTPClient(httpClient),
		option.WithEndpoint(baseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("wallet: create walletobjects service: %w", err)
	}
	duration, err := otel.Meter(instrumentationName).Float64Histogram(
		"wallet.upstream.duration",
		metric.WithDescription("Issuer API call latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("wallet: create duration histogram: %w", err)
	}
	return &IssuerClient{
		svc:      svc,
		http:     httpClient,
		tracer:   otel.Tracer(instrumentationName),
		duration: duration,
		observer: observer,
	}, nil
}

func (c *IssuerClient) GetClass(ctx context.Context, classID string) (json.RawMessage, error) {
	return c.call(ctx, "get_class", func(ctx context.Context) (interface{}, int, error) {
		class, err := c.svc.Loyaltyclass.Get(classID).Context(ctx).Do()
		if err != nil {
			return nil, 0, err
		}
		return class, class.HTTPStatusCode, nil
	})
}

func (c *IssuerClient) InsertObject(ctx context.Context, obj *walletobjects.LoyaltyObject) (json.RawMessage, error) {
	return c.call(ctx, "insert_object", func(ctx context.Context) (interface{}, int, error) {
		created, err := c.svc.Loyaltyobject.Insert(obj).Context(ctx).Do()
		if err != nil {
			return nil, 0, err
		}
		return created, created.HTTPStatusCode, nil
	})
}

func (c *IssuerClient) PatchObject(ctx context.Context, objectID string, patch *walletobjects.LoyaltyObject) (json.RawMessage, error) {
	return c.call(ctx, "patch_object", func(ctx context.Context) (interface{}, int, error) {
		updated, err := c.svc.Loyaltyobject.Patch(objectID, patch).Context(ctx).Do()
		if err != nil {
			return nil, 0, err
		}
		return updated, updated.HTTPStatusCode, nil
	})
}

func (c *IssuerClient) DeleteObject(ctx context.Context, objectID string) error {
	_, err := c.call(ctx, "delete_object", func(ctx context.Context) (interface{}, int, error) {
		status, err := c.deleteObject(ctx, objectID)
		return nil, status, err
	})
	return err
}

// deleteObject issues the DELETE over the authorized client. The generated
// loyaltyobject resource has no delete call, so the request is built the way the
// generated calls build theirs.
func (c *IssuerClient) deleteObject(ctx context.Context, objectID string) (int, error) {
	urls := googleapi.ResolveRelative(c.svc.BasePath, loyaltyObjectPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, urls, nil)
	if err != nil {
		return 0, err
	}
	googleapi.Expand(req.URL, map[string]string{"resourceId": objectID})
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer googleapi.CloseBody(resp)
	if err := googleapi.CheckResponse(resp); err != nil {
		return resp.StatusCode, err
	}
	return resp.StatusCode, nil
}

func (c *IssuerClient) call(ctx context.Context, op string, fn func(context.Context) (interface{}, int, error)) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, "wallet."+op, trace.WithAttributes(
		attribute.String("wallet.operation", op),
	))
	defer span.End()

	start := time.Now()
	resource, status, err := fn(ctx)
	var body json.RawMessage
	if err == nil && resource != nil {
		if body, err = json.Marshal(resource); err != nil {
			err = fmt.Errorf("wallet: encode %s response: %w", op, err)
		}
	}
	if status == 0 {
		status = statusOf(err)
	}
	c.observe(ctx, op, status, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorMessage(err))
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", status))
	return body, nil
}

func (c *IssuerClient) observe(ctx context.Context, op string, status int, err error, elapsed time.Duration) {
	outcome := "ok"
	switch {
	case IsTimeout(err):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	c.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("wallet.operation", op),
		attribute.String("outcome", outcome),
	))
	if c.observer != nil {
		c.observer.ObserveUpstream(op, outcome, status, elapsed)
	}
}
