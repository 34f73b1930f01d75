package pinme

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	client := NewClient("", 0)

	if client == nil {
		t.Fatal("NewClient returned nil")
	}
	if client.httpClient == nil {
		t.Error("httpClient should not be nil")
	}
	if client.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q, want %q", client.baseURL, DefaultBaseURL)
	}
	if client.httpClient.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", client.httpClient.Timeout)
	}
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	client := NewClient("http://example.test/api/", time.Second)
	if client.baseURL != "http://example.test/api" {
		t.Errorf("baseURL = %q", client.baseURL)
	}
}

func TestWithCookie_DoesNotMutateOriginal(t *testing.T) {
	base := NewClient("http://example.test", time.Second)
	withCookie := base.WithCookie("JSESSIONID=abc")

	if base.cookie != "" {
		t.Errorf("original client cookie = %q, want empty", base.cookie)
	}
	if withCookie.cookie != "JSESSIONID=abc" {
		t.Errorf("cookie = %q", withCookie.cookie)
	}
	if withCookie.httpClient != base.httpClient {
		t.Error("copies should share the http.Client")
	}
}

func TestFetchTrips_MockServer(t *testing.T) {
	sampleJSON := `[
  {
    "deviceId": 7,
    "deviceName": "Truck 7",
    "startTime": "2024-01-15T10:00:00.000+00:00",
    "endTime": "2024-01-15T10:30:00.000+00:00",
    "startOdometer": 1000,
    "endOdometer": 13500,
    "averageSpeed": 20,
    "maxSpeed": 45.5,
    "spentFuel": 2.5,
    "driverName": " Alice ",
    "endAddress": "Rue de la Paix"
  },
  {
    "deviceId": 7,
    "startTime": "2024-01-15T11:00:00Z",
    "endTime": "2024-01-15T11:45:00Z",
    "startOdometer": "n/a",
    "endOdometer": null
  }
]`

	var receivedPath, receivedQuery string
	var receivedHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedPath = r.URL.Path
		receivedQuery = r.URL.RawQuery
		receivedHeaders = r.Header
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(sampleJSON))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second).WithCookie("JSESSIONID=abc")

	from := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 15, 23, 59, 59, 0, time.UTC)
	trips, err := client.FetchTrips(context.Background(), 7, from, to)
	if err != nil {
		t.Fatalf("FetchTrips failed: %v", err)
	}

	if receivedPath != "/reports/trips" {
		t.Errorf("path = %q, want /reports/trips", receivedPath)
	}
	for _, want := range []string{"deviceId=7", "from=2024-01-15T00%3A00%3A00Z", "to=2024-01-15T23%3A59%3A59Z"} {
		if !strings.Contains(receivedQuery, want) {
			t.Errorf("query %q should contain %q", receivedQuery, want)
		}
	}
	if got := receivedHeaders.Get("Cookie"); got != "JSESSIONID=abc" {
		t.Errorf("Cookie = %q", got)
	}
	if got := receivedHeaders.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q", got)
	}

	if len(trips) != 2 {
		t.Fatalf("got %d trips, want 2", len(trips))
	}
	if v, ok := trips[0].EndOdometer.Number(); !ok || v != 13500 {
		t.Errorf("EndOdometer = %v, %v", v, ok)
	}
	if name, _ := trips[0].DeviceName.Text(); name != "Truck 7" {
		t.Errorf("DeviceName = %q", name)
	}
	// Wrongly-typed fields decode without failing the whole payload
	if _, ok := trips[1].StartOdometer.Number(); ok {
		t.Error("string odometer should not read as a number")
	}
	if !trips[1].EndOdometer.IsNull() {
		t.Error("null odometer should be null")
	}
}

func TestFetchStops_MockServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reports/stops" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`[{"startTime":"2024-01-15T10:35:00Z","endTime":"2024-01-15T10:55:00Z","idleTime":600000,"duration":1200000}]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	stops, err := client.FetchStops(context.Background(), 1, time.Now(), time.Now())
	if err != nil {
		t.Fatalf("FetchStops failed: %v", err)
	}
	if len(stops) != 1 {
		t.Fatalf("got %d stops, want 1", len(stops))
	}
	if v, _ := stops[0].Duration.Number(); v != 1200000 {
		t.Errorf("Duration = %v", v)
	}
}

func TestFetchGroupsAndDevices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("all") != "true" {
			t.Errorf("expected all=true, got %q", r.URL.RawQuery)
		}
		switch r.URL.Path {
		case "/groups":
			w.Write([]byte(`[{"id":1,"name":"North"},{"id":2,"name":""}]`))
		case "/devices":
			w.Write([]byte(`[{"id":7,"name":"Truck 7","groupId":1,"model":" FMB920 "}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)

	groups, err := client.FetchGroups(context.Background())
	if err != nil {
		t.Fatalf("FetchGroups failed: %v", err)
	}
	if len(groups) != 2 || groups[0].Name != "North" {
		t.Errorf("unexpected groups: %+v", groups)
	}

	devices, err := client.FetchDevices(context.Background())
	if err != nil {
		t.Fatalf("FetchDevices failed: %v", err)
	}
	if len(devices) != 1 || devices[0].GroupID != 1 {
		t.Errorf("unexpected devices: %+v", devices)
	}
}

func TestFetch_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)

	_, err := client.FetchTrips(context.Background(), 1, time.Now(), time.Now())
	if err == nil {
		t.Fatal("Expected error for HTTP 500, got nil")
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %T", err)
	}
	if statusErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d", statusErr.StatusCode)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error %q should carry the response body", err.Error())
	}
}

func TestFetch_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)

	_, err := client.FetchGroups(context.Background())
	if err == nil {
		t.Error("Expected error for HTTP 401, got nil")
	}
}

func TestFetch_BasicAuth(t *testing.T) {
	var user, pass string
	var ok bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok = r.BasicAuth()
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second).WithBasicAuth("fleet", "secret")
	if _, err := client.FetchDevices(context.Background()); err != nil {
		t.Fatalf("FetchDevices failed: %v", err)
	}
	if !ok || user != "fleet" || pass != "secret" {
		t.Errorf("basic auth = %q/%q (%v)", user, pass, ok)
	}
}

func TestFetch_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"an array"`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	if _, err := client.FetchStops(context.Background(), 1, time.Now(), time.Now()); err == nil {
		t.Error("expected decode error")
	}
}

// Integration test - only runs when PINME_COOKIE is set
func TestFetchDevices_Integration(t *testing.T) {
	cookie := os.Getenv("PINME_COOKIE")
	if cookie == "" {
		t.Skip("PINME_COOKIE not set, skipping integration test")
	}

	client := NewClient(os.Getenv("PINME_BASE"), 30*time.Second).WithCookie(cookie)
	devices, err := client.FetchDevices(context.Background())
	if err != nil {
		t.Fatalf("FetchDevices failed: %v", err)
	}
	t.Logf("Received %d devices", len(devices))
}
