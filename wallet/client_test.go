package wallet

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"loyaltywallet/credentials"
	"loyaltywallet/credentials/credtest"
)

type recordedRequest struct {
	method        string
	path          string
	authorization string
	body          map[string]interface{}
}

type upstreamCall struct {
	operation string
	outcome   string
	status    int
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []upstreamCall
}

func (o *recordingObserver) ObserveUpstream(operation, outcome string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, upstreamCall{operation: operation, outcome: outcome, status: status})
}

func newIssuerServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*IssuerClient, *[]recordedRequest, *recordingObserver) {
	t.Helper()
	var seen []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{
			method:        r.Method,
			path:          r.URL.EscapedPath(),
			authorization: r.Header.Get("Authorization"),
		}
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &rec.body)
		}
		seen = append(seen, rec)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	observer := &recordingObserver{}
	client, err := NewIssuerClient(context.Background(), srv.URL, srv.Client(), observer)
	require.NoError(t, err)
	return client, &seen, observer
}

func TestIssuerClientGetClass(t *testing.T) {
	client, seen, observer := newIssuerServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"42.bonus","reviewStatus":"APPROVED"}`))
	})
	info, err := client.GetClass(context.Background(), "42.bonus")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"42.bonus","reviewStatus":"APPROVED"}`, string(info))
	require.Len(t, *seen, 1)
	assert.Equal(t, http.MethodGet, (*seen)[0].method)
	assert.Equal(t, "/walletobjects/v1/loyaltyClass/42.bonus", (*seen)[0].path)
	assert.Equal(t, []upstreamCall{{operation: "get_class", outcome: "ok", status: http.StatusOK}}, observer.calls)
}

func TestIssuerClientRecordsDurationHistogram(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	previous := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { otel.SetMeterProvider(previous) })

	client, _, _ := newIssuerServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"42.bonus"}`))
	})
	_, err := client.GetClass(context.Background(), "42.bonus")
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var points uint64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "wallet.upstream.duration" {
				continue
			}
			hist, ok := m.Data.(metricdata.Histogram[float64])
			require.True(t, ok)
			for _, dp := range hist.DataPoints {
				points += dp.Count
			}
		}
	}
	assert.Equal(t, uint64(1), points)
}

func TestIssuerClientInsertObjectSendsPayload(t *testing.T) {
	client, seen, _ := newIssuerServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"42.u1","state":"ACTIVE"}`))
	})
	obj := NewLoyaltyObject("42.u1", "42.bonus", "Jane", "123", "50", Style{
		HexBackgroundColor: "#0000FF",
		LogoURI:            "https://img.example/logo.png",
		BackgroundImageURI: "https://img.example/bg.png",
		BackgroundImageAlt: "Background Image",
	})
	created, err := client.InsertObject(context.Background(), obj)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"42.u1","state":"ACTIVE"}`, string(created))

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/walletobjects/v1/loyaltyObject", req.path)
	assert.Equal(t, "42.u1", req.body["id"])
	assert.Equal(t, "42.bonus", req.body["classId"])
	assert.Equal(t, "active", req.body["state"])
	assert.Equal(t, "123", req.body["accountId"])
	assert.Equal(t, "Jane", req.body["accountName"])
	assert.Equal(t, "#0000FF", req.body["hexBackgroundColor"])
	barcode := req.body["barcode"].(map[string]interface{})
	assert.Equal(t, "CODE_128", barcode["type"])
	assert.Equal(t, "123", barcode["value"])
	balance := req.body["loyaltyPoints"].(map[string]interface{})["balance"].(map[string]interface{})
	assert.Equal(t, "50 Bonus", balance["string"])
	modules := req.body["imageModulesData"].([]interface{})
	require.Len(t, modules, 1)
	module := modules[0].(map[string]interface{})
	assert.Equal(t, "IMAGE_MODULE_ID", module["id"])
	description := module["mainImage"].(map[string]interface{})["contentDescription"].(map[string]interface{})
	assert.Equal(t, "en-US", description["defaultValue"].(map[string]interface{})["language"])
	logo := req.body["logo"].(map[string]interface{})["sourceUri"].(map[string]interface{})
	assert.Equal(t, "https://img.example/logo.png", logo["uri"])
}

func TestIssuerClientPatchOnlyTouchesBalance(t *testing.T) {
	client, seen, _ := newIssuerServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"42.u1"}`))
	})
	_, err := client.PatchObject(context.Background(), "42.u1", NewBalancePatch("75"))
	require.NoError(t, err)
	req := (*seen)[0]
	assert.Equal(t, http.MethodPatch, req.method)
	assert.Equal(t, "/walletobjects/v1/loyaltyObject/42.u1", req.path)
	require.Len(t, req.body, 1)
	balance := req.body["loyaltyPoints"].(map[string]interface{})["balance"].(map[string]interface{})
	assert.Equal(t, "75 Bonus", balance["string"])
}

func TestIssuerClientDeleteEscapesObjectID(t *testing.T) {
	client, seen, observer := newIssuerServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, client.DeleteObject(context.Background(), "42.a/b c"))
	assert.Equal(t, "/walletobjects/v1/loyaltyObject/42.a%2Fb%20c", (*seen)[0].path)
	assert.Equal(t, http.MethodDelete, (*seen)[0].method)
	assert.Equal(t, http.StatusNoContent, observer.calls[0].status)
}

func TestIssuerClientSurfacesGoogleErrorMessage(t *testing.T) {
	client, _, observer := newIssuerServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Resource not found: 42.u1","status":"NOT_FOUND"}}`))
	})
	err := client.DeleteObject(context.Background(), "42.u1")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "Resource not found: 42.u1", ErrorMessage(err))
	assert.Equal(t, []upstreamCall{{operation: "delete_object", outcome: "error", status: http.StatusNotFound}}, observer.calls)

	_, err = client.PatchObject(context.Background(), "42.u1", NewBalancePatch("1"))
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "Resource not found: 42.u1", ErrorMessage(err))
}

func TestIssuerClientFallsBackToStatusText(t *testing.T) {
	client, _, _ := newIssuerServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := client.GetClass(context.Background(), "42.bonus")
	require.Error(t, err)
	assert.Equal(t, "Service Unavailable", ErrorMessage(err))
}

func TestIssuerClientRejectsInvalidJSON(t *testing.T) {
	client, _, _ := newIssuerServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})
	_, err := client.GetClass(context.Background(), "42.bonus")
	require.Error(t, err)
}

func TestIssuerClientHonoursContextDeadline(t *testing.T) {
	release := make(chan struct{})
	client, _, observer := newIssuerServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.GetClass(ctx, "42.bonus")
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.Equal(t, "timeout", observer.calls[0].outcome)
}

func TestAuthorizedClientUsesServiceAccountBearer(t *testing.T) {
	var tokenRequests int
	var scope, grantType string
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenRequests++
		_ = r.ParseForm()
		grantType = r.PostForm.Get("grant_type")
		assertion, _, err := jwt.NewParser().ParseUnverified(r.PostForm.Get("assertion"), jwt.MapClaims{})
		if err == nil {
			scope, _ = assertion.Claims.(jwt.MapClaims)["scope"].(string)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"issuer-token","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(tokenSrv.Close)

	var authorization []string
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization = append(authorization, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":"42.bonus"}`))
	}))
	t.Cleanup(apiSrv.Close)

	conf := credtest.Credential(t, "issuer@example.iam.gserviceaccount.com").JWTConfig()
	conf.TokenURL = tokenSrv.URL
	httpClient := AuthorizedClient(context.Background(), conf, 5*time.Second)
	assert.Equal(t, 5*time.Second, httpClient.Timeout)

	client, err := NewIssuerClient(context.Background(), apiSrv.URL, httpClient, nil)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = client.GetClass(context.Background(), "42.bonus")
		require.NoError(t, err)
	}

	assert.Equal(t, "urn:ietf:params:oauth:grant-type:jwt-bearer", grantType)
	assert.Equal(t, credentials.IssuerScope, scope)
	assert.Equal(t, []string{"Bearer issuer-token", "Bearer issuer-token"}, authorization)
	assert.Equal(t, 1, tokenRequests, "token is cached across calls")
}

func TestAuthorizedClientDefaultsTimeout(t *testing.T) {
	conf := credtest.Credential(t, "issuer@example.com").JWTConfig()
	assert.Equal(t, defaultRequestTimeout, AuthorizedClient(context.Background(), conf, 0).Timeout)
}
