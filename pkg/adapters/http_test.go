package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const sampleObservationDoc = `{
  "receiver": {
    "freq_mhz": [50, 75, 100],
    "open":   {"re": [1, 1, 1],    "im": [0, 0, 0]},
    "short":  {"re": [-1, -1, -1], "im": [0, 0, 0]},
    "match":  {"re": [0, 0, 0],    "im": [0, 0, 0]},
    "device": {"re": [0.1, 0.12, 0.15], "im": [-0.05, -0.04, -0.02]}
  },
  "switch": {
    "freq_mhz": [50, 75, 100],
    "open":  {"re": [1, 1, 1],    "im": [0, 0, 0]},
    "short": {"re": [-1, -1, -1], "im": [0, 0, 0]},
    "match": {"re": [0, 0, 0],    "im": [0, 0, 0]}
  },
  "loads": {
    "ambient": {
      "s11": {
        "freq_mhz": [50, 75, 100],
        "open":   {"re": [1, 1, 1],    "im": [0, 0, 0]},
        "short":  {"re": [-1, -1, -1], "im": [0, 0, 0]},
        "match":  {"re": [0, 0, 0],    "im": [0, 0, 0]},
        "device": {"re": [0.02, 0.02, 0.02], "im": [0.01, 0.01, 0.01]}
      },
      "spectrum": {
        "frequencies_mhz": [50, 75, 100],
        "p_source": [[2, 2, 2], [2, 2, 2]],
        "p_load": [[1, 1, 1], [1, 1, 1]],
        "p_load_ns": [[3, 3, 3], [3, 3, 3]],
        "thermistor_temps_k": [296.1, 296.2]
      }
    }
  }
}`

func TestHTTPAdapter_Fetch(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleObservationDoc))
	}))
	defer server.Close()

	adapter := &HTTPAdapter{
		URL:          server.URL + "/v1/observations/{{.Observation}}",
		Headers:      map[string]string{"Authorization": "Bearer {{.Token}}"},
		TemplateVars: map[string]string{"Token": "secret123"},
	}

	data, err := adapter.Fetch(context.Background(), "obs-2026-08")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if gotPath != "/v1/observations/obs-2026-08" {
		t.Errorf("request path = %q", gotPath)
	}
	if gotAuth != "Bearer secret123" {
		t.Errorf("authorization header = %q", gotAuth)
	}

	if len(data.Receiver.Freqs) != 3 {
		t.Fatalf("receiver axis has %d points, want 3", len(data.Receiver.Freqs))
	}
	if data.Receiver.Device[2] != complex(0.15, -0.02) {
		t.Errorf("receiver device[2] = %v", data.Receiver.Device[2])
	}
	if data.Switch.Device != nil {
		t.Error("switch set should have no device reading")
	}

	ambient, ok := data.Loads["ambient"]
	if !ok {
		t.Fatal("ambient load missing")
	}
	if ambient.S11.Device[0] != complex(0.02, 0.01) {
		t.Errorf("ambient device[0] = %v", ambient.S11.Device[0])
	}
	if len(ambient.Spectrum.PSource) != 2 || len(ambient.Spectrum.PSource[0]) != 3 {
		t.Errorf("spectrum shape = %dx%d, want 2x3", len(ambient.Spectrum.PSource), len(ambient.Spectrum.PSource[0]))
	}
}

func TestHTTPAdapter_Fetch_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such observation", http.StatusNotFound)
	}))
	defer server.Close()

	adapter := &HTTPAdapter{URL: server.URL + "/{{.Observation}}"}
	if _, err := adapter.Fetch(context.Background(), "missing"); err == nil {
		t.Error("expected error for 404 response")
	}
}

func TestHTTPAdapter_Fetch_MissingPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"receiver": {"freq_mhz": [50]}}`))
	}))
	defer server.Close()

	adapter := &HTTPAdapter{URL: server.URL}
	if _, err := adapter.Fetch(context.Background(), "obs"); err == nil {
		t.Error("expected error for document missing measurement paths")
	}
}

func TestHTTPAdapter_Fetch_ConfigErrors(t *testing.T) {
	adapter := &HTTPAdapter{}
	if _, err := adapter.Fetch(context.Background(), "obs"); err == nil {
		t.Error("expected error for missing URL")
	}
	adapter.URL = "http://localhost:1"
	if _, err := adapter.Fetch(context.Background(), ""); err == nil {
		t.Error("expected error for empty observation name")
	}
}
