package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/tidwall/gjson"

	"github.com/lowband/rxcal/pkg/s11"
	"github.com/lowband/rxcal/pkg/spectra"
)

// HTTPAdapter pulls observations from an archive API that serves one JSON
// document per observation.
//
// Expected document layout (paths extracted with gjson):
//
//	{
//	  "receiver": {"freq_mhz": [...],
//	               "open": {"re": [...], "im": [...]}, "short": {...},
//	               "match": {...}, "device": {...}},
//	  "switch":   {"freq_mhz": [...], "open": {...}, "short": {...}, "match": {...}},
//	  "loads": {
//	    "<name>": {
//	      "s11":      {"freq_mhz": [...], "open": {...}, ..., "device": {...}},
//	      "spectrum": {"frequencies_mhz": [...], "p_source": [[...]],
//	                   "p_load": [[...]], "p_load_ns": [[...]],
//	                   "thermistor_temps_k": [...]}
//	    }
//	  }
//	}
type HTTPAdapter struct {
	// URL is the endpoint template (required). It supports the variable
	// {{.Observation}} plus anything in TemplateVars, e.g.
	// "https://archive.example.org/v1/observations/{{.Observation}}".
	URL string

	// Headers are custom HTTP headers to include in the request. Values can
	// use the same template variables as URL.
	Headers map[string]string

	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client

	// TemplateVars are extra variables available in URL and Headers
	// templates. Use this to pass tokens, API keys, etc.
	TemplateVars map[string]string
}

func (h *HTTPAdapter) Name() string { return "http" }

// Fetch implements Adapter. It retrieves the observation document and
// extracts the measurement arrays.
func (h *HTTPAdapter) Fetch(ctx context.Context, observation string) (*ObservationData, error) {
	if h.URL == "" {
		return nil, errors.New("http adapter: URL is required")
	}
	if observation == "" {
		return nil, errors.New("http adapter: observation name is required")
	}

	templateData := map[string]any{
		"Observation": observation,
	}
	for k, v := range h.TemplateVars {
		templateData[k] = v
	}

	url, err := renderTemplate(h.URL, templateData)
	if err != nil {
		return nil, fmt.Errorf("http adapter: render URL template: %w", err)
	}

	cli := h.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("http adapter: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range h.Headers {
		rendered, err := renderTemplate(value, templateData)
		if err != nil {
			return nil, fmt.Errorf("http adapter: render header %s: %w", key, err)
		}
		req.Header.Set(key, rendered)
	}

	resp, err := cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http adapter: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("http adapter: status %d: %s", resp.StatusCode, string(body))
	}

	doc, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("http adapter: read response: %w", err)
	}

	receiver, err := gammaSetFromDoc(doc, "receiver", true)
	if err != nil {
		return nil, fmt.Errorf("http adapter: receiver: %w", err)
	}
	sw, err := gammaSetFromDoc(doc, "switch", false)
	if err != nil {
		return nil, fmt.Errorf("http adapter: switch: %w", err)
	}

	loadsResult := gjson.GetBytes(doc, "loads")
	if !loadsResult.Exists() {
		return nil, fmt.Errorf("http adapter: path %q not found in document", "loads")
	}

	loads := make(map[string]LoadData)
	var loadErr error
	loadsResult.ForEach(func(key, _ gjson.Result) bool {
		name := key.String()
		ms, err := gammaSetFromDoc(doc, "loads."+name+".s11", true)
		if err != nil {
			loadErr = fmt.Errorf("http adapter: load %s: %w", name, err)
			return false
		}
		reading, err := readingFromDoc(doc, "loads."+name+".spectrum")
		if err != nil {
			loadErr = fmt.Errorf("http adapter: load %s: %w", name, err)
			return false
		}
		loads[name] = LoadData{S11: ms, Spectrum: reading}
		return true
	})
	if loadErr != nil {
		return nil, loadErr
	}
	if len(loads) == 0 {
		return nil, fmt.Errorf("http adapter: observation %s has no loads", observation)
	}

	data := &ObservationData{
		Name:     observation,
		Receiver: receiver,
		Switch:   sw,
		Loads:    loads,
	}
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("http adapter: %w", err)
	}
	return data, nil
}

// gammaSetFromDoc extracts one measurement session (standards plus optional
// device) from the document at base.
func gammaSetFromDoc(doc []byte, base string, withDevice bool) (s11.MeasurementSet, error) {
	var ms s11.MeasurementSet

	freqs, err := floatsAt(doc, base+".freq_mhz")
	if err != nil {
		return ms, err
	}
	ms.Freqs = freqs

	if ms.Open, err = gammaAt(doc, base+".open", len(freqs)); err != nil {
		return ms, err
	}
	if ms.Short, err = gammaAt(doc, base+".short", len(freqs)); err != nil {
		return ms, err
	}
	if ms.Match, err = gammaAt(doc, base+".match", len(freqs)); err != nil {
		return ms, err
	}
	if withDevice {
		if ms.Device, err = gammaAt(doc, base+".device", len(freqs)); err != nil {
			return ms, err
		}
	}
	return ms, nil
}

// gammaAt reads the re/im component arrays below base and zips them into
// complex samples.
func gammaAt(doc []byte, base string, n int) ([]complex128, error) {
	re, err := floatsAt(doc, base+".re")
	if err != nil {
		return nil, err
	}
	im, err := floatsAt(doc, base+".im")
	if err != nil {
		return nil, err
	}
	if len(re) != n || len(im) != n {
		return nil, fmt.Errorf("path %q: re/im lengths (%d, %d) do not match frequency axis %d", base, len(re), len(im), n)
	}
	out := make([]complex128, n)
	for i := range out {
		out[i] = complex(re[i], im[i])
	}
	return out, nil
}

func readingFromDoc(doc []byte, base string) (spectra.Reading, error) {
	var r spectra.Reading
	var err error

	if r.Freqs, err = floatsAt(doc, base+".frequencies_mhz"); err != nil {
		return r, err
	}
	if r.PSource, err = matrixAt(doc, base+".p_source"); err != nil {
		return r, err
	}
	if r.PLoad, err = matrixAt(doc, base+".p_load"); err != nil {
		return r, err
	}
	if r.PLoadNS, err = matrixAt(doc, base+".p_load_ns"); err != nil {
		return r, err
	}
	if r.ThermistorTemps, err = floatsAt(doc, base+".thermistor_temps_k"); err != nil {
		return r, err
	}
	return r, nil
}

func floatsAt(doc []byte, path string) ([]float64, error) {
	result := gjson.GetBytes(doc, path)
	if !result.Exists() {
		return nil, fmt.Errorf("path %q not found in document", path)
	}
	arr := result.Array()
	out := make([]float64, len(arr))
	for i, v := range arr {
		out[i] = v.Float()
	}
	return out, nil
}

func matrixAt(doc []byte, path string) ([][]float64, error) {
	result := gjson.GetBytes(doc, path)
	if !result.Exists() {
		return nil, fmt.Errorf("path %q not found in document", path)
	}
	rows := result.Array()
	out := make([][]float64, len(rows))
	for i, row := range rows {
		cells := row.Array()
		out[i] = make([]float64, len(cells))
		for j, v := range cells {
			out[i][j] = v.Float()
		}
	}
	return out, nil
}

// renderTemplate renders a text template with the given data.
func renderTemplate(tmplStr string, data map[string]any) (string, error) {
	if !strings.Contains(tmplStr, "{{") {
		return tmplStr, nil
	}

	tmpl, err := template.New("").Parse(tmplStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}
