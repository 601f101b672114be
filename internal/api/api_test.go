package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"NetProfiler/internal/assembler"
	"NetProfiler/internal/model"
	"NetProfiler/internal/store"
)

// stubHub satisfies LiveHub without a running websocket loop.
type stubHub struct{}

func (stubHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "not implemented", http.StatusNotImplemented)
}

func (stubHub) ClientCount() int { return 0 }

func newTestServer(t *testing.T) (*httptest.Server, *assembler.Assembler) {
	t.Helper()
	asm := assembler.New(store.New(16))
	srv := httptest.NewServer(New(asm, stubHub{}).Router())
	t.Cleanup(srv.Close)
	return srv, asm
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("Failed to decode response from %s: %v", url, err)
		}
	}
	return resp
}

func TestAPI_IngestAndGetProfile(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/ingest/tcp", map[string]interface{}{
		"ip": "1.2.3.4", "source": "tcp",
		"payload": map[string]interface{}{"os": "Linux", "quality": 0.92},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for tcp ingest, got %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/api/ingest/http", map[string]interface{}{
		"ip": "1.2.3.4",
		"payload": map[string]interface{}{"browser": "Chrome", "quality": 0.88},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for http ingest, got %d", resp.StatusCode)
	}

	var profile struct {
		ID           string               `json:"id"`
		TCP          *model.TCPSignature  `json:"tcp"`
		HTTP         *model.HTTPSignature `json:"http"`
		TLS          *json.RawMessage     `json:"tls"`
		Completeness int                  `json:"completeness"`
	}
	resp = getJSON(t, srv.URL+"/api/profiles/1.2.3.4", &profile)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if profile.TCP == nil || profile.TCP.OS != "Linux" {
		t.Errorf("Expected tcp field with os Linux, got %+v", profile.TCP)
	}
	if profile.HTTP == nil || profile.HTTP.Browser != "Chrome" {
		t.Errorf("Expected http field with browser Chrome, got %+v", profile.HTTP)
	}
	if profile.TLS != nil {
		t.Error("tls field must be absent until a tls event arrives")
	}
	if profile.Completeness != 2 {
		t.Errorf("Expected completeness 2, got %d", profile.Completeness)
	}
}

func TestAPI_IngestRejectsMalformed(t *testing.T) {
	srv, asm := newTestServer(t)

	cases := []struct {
		name string
		body interface{}
	}{
		{"bad ip", map[string]interface{}{"ip": "not-an-ip", "payload": map[string]interface{}{"os": "Linux"}}},
		{"missing payload", map[string]interface{}{"ip": "1.2.3.4"}},
		{"mismatched source", map[string]interface{}{"ip": "1.2.3.4", "source": "http", "payload": map[string]interface{}{}}},
	}
	for _, tc := range cases {
		resp := postJSON(t, srv.URL+"/api/ingest/tcp", tc.body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Case %q: expected 400, got %d", tc.name, resp.StatusCode)
		}
	}

	resp, err := http.Post(srv.URL+"/api/ingest/tcp", "application/json", bytes.NewReader([]byte("{broken")))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for unparseable body, got %d", resp.StatusCode)
	}

	if asm.Stats().TotalProfiles != 0 {
		t.Error("Malformed requests must never create profiles")
	}
}

func TestAPI_DeleteProfile(t *testing.T) {
	srv, asm := newTestServer(t)
	asm.Ingest(model.FingerprintEvent{
		Kind: model.SourceTCP, Key: "1.2.3.4", ObservedAt: time.Now(),
		TCP: &model.TCPSignature{OS: "Linux"},
	})

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/profiles/1.2.3.4", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for delete, got %d", resp.StatusCode)
	}

	if resp := getJSON(t, srv.URL+"/api/profiles/1.2.3.4", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", resp.StatusCode)
	}

	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Second DELETE failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for delete of absent key, got %d", resp.StatusCode)
	}
}

func TestAPI_ListFiltersAndPagination(t *testing.T) {
	srv, asm := newTestServer(t)
	base := time.Now()
	for i := 0; i < 5; i++ {
		asm.Ingest(model.FingerprintEvent{
			Kind: model.SourceTCP, Key: fmt.Sprintf("10.0.0.%d", i),
			ObservedAt: base.Add(time.Duration(i) * time.Second),
			TCP:        &model.TCPSignature{OS: "Linux", Quality: 0.9},
		})
	}
	asm.Ingest(model.FingerprintEvent{
		Kind: model.SourceHTTP, Key: "10.0.0.0", ObservedAt: base,
		HTTP: &model.HTTPSignature{Browser: "Chrome", Quality: 0.5},
	})

	var profiles []json.RawMessage
	getJSON(t, srv.URL+"/api/profiles?limit=2&offset=1", &profiles)
	if len(profiles) != 2 {
		t.Errorf("Expected a page of 2, got %d", len(profiles))
	}

	profiles = nil
	getJSON(t, srv.URL+"/api/profiles?type=http", &profiles)
	if len(profiles) != 1 {
		t.Errorf("Expected 1 profile with an http field, got %d", len(profiles))
	}

	profiles = nil
	getJSON(t, srv.URL+"/api/profiles?quality_min=0.8", &profiles)
	if len(profiles) != 5 {
		t.Errorf("Expected 5 profiles above quality 0.8, got %d", len(profiles))
	}

	if resp := getJSON(t, srv.URL+"/api/profiles?limit=banana", nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid limit, got %d", resp.StatusCode)
	}
	if resp := getJSON(t, srv.URL+"/api/profiles?type=smtp", nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid type, got %d", resp.StatusCode)
	}
}

func TestAPI_Search(t *testing.T) {
	srv, asm := newTestServer(t)
	asm.Ingest(model.FingerprintEvent{
		Kind: model.SourceHTTP, Key: "10.0.0.1", ObservedAt: time.Now(),
		HTTP: &model.HTTPSignature{Browser: "Firefox", Quality: 0.8},
	})
	asm.Ingest(model.FingerprintEvent{
		Kind: model.SourceTLS, Key: "10.0.0.2", ObservedAt: time.Now(),
		TLS: &model.TLSFingerprint{JA4: "t13d1516h2_8daaf6152771_b0da82dd1658"},
	})

	var profiles []struct {
		ID string `json:"id"`
	}
	getJSON(t, srv.URL+"/api/profiles/search?q=firefox", &profiles)
	if len(profiles) != 1 || profiles[0].ID != "10.0.0.1" {
		t.Errorf("Unexpected search result: %+v", profiles)
	}

	profiles = nil
	getJSON(t, srv.URL+"/api/profiles/search?q=t13d", &profiles)
	if len(profiles) != 1 || profiles[0].ID != "10.0.0.2" {
		t.Errorf("Expected JA4 search to match, got %+v", profiles)
	}
}

func TestAPI_MyProfile(t *testing.T) {
	srv, asm := newTestServer(t)
	asm.Ingest(model.FingerprintEvent{
		Kind: model.SourceTCP, Key: "198.51.100.7", ObservedAt: time.Now(),
		TCP: &model.TCPSignature{OS: "FreeBSD"},
	})

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/my-profile", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET my-profile failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var profile struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		t.Fatalf("Failed to decode profile: %v", err)
	}
	if profile.ID != "198.51.100.7" {
		t.Errorf("Expected the forwarded caller's profile, got %q", profile.ID)
	}

	// The loopback caller has no profile.
	if resp := getJSON(t, srv.URL+"/api/my-profile", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for caller with no profile, got %d", resp.StatusCode)
	}
}

func TestAPI_StatsAndHealth(t *testing.T) {
	srv, asm := newTestServer(t)
	asm.Ingest(model.FingerprintEvent{
		Kind: model.SourceTCP, Key: "10.0.0.1", ObservedAt: time.Now(),
		TCP: &model.TCPSignature{OS: "Linux"},
	})

	var stats model.Stats
	getJSON(t, srv.URL+"/api/stats", &stats)
	if stats.TotalProfiles != 1 || stats.TCPProfiles != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}

	var health map[string]interface{}
	getJSON(t, srv.URL+"/health", &health)
	if health["status"] != "ok" {
		t.Errorf("Expected healthy status, got %v", health["status"])
	}
	if health["profiles"].(float64) != 1 {
		t.Errorf("Expected 1 profile in health payload, got %v", health["profiles"])
	}
}
