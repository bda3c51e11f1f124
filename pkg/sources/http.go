package sources

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

	"github.com/HatiCode/silverline/pkg/faults"
	"github.com/HatiCode/silverline/pkg/resample"
	"github.com/HatiCode/silverline/pkg/workday"
)

// HTTPSource fetches the bronze tables from a JSON API and extracts them
// with gjson path expressions.
//
// Example configuration for a meter-data API:
//
//	src := &HTTPSource{
//	    SamplesURL:    "https://meters.example.com/load?from={{.StartRFC3339}}&to={{.EndRFC3339}}",
//	    DaysURL:       "https://meters.example.com/calendar",
//	    Headers:       map[string]string{"Authorization": "Bearer {{.Token}}"},
//	    TimestampPath: "samples.#.ts",
//	    LoadPath:      "samples.#.kw",
//	    DatePath:      "days.#.date",
//	    ClassPath:     "days.#.class",
//	}
type HTTPSource struct {
	// SamplesURL returns the load series (required). Supports the
	// template variables {{.Start}}, {{.End}}, {{.StartRFC3339}} and
	// {{.EndRFC3339}} when Start and End are set.
	SamplesURL string

	// DaysURL returns the day-class table. Defaults to SamplesURL, so a
	// single document may carry both tables.
	DaysURL string

	// Headers are sent with both requests. Values can use template
	// variables like {{.Token}}.
	Headers map[string]string

	// TimestampPath and LoadPath select the sample columns and must yield
	// the same number of elements.
	TimestampPath string
	LoadPath      string

	// DatePath and ClassPath select the day-class columns.
	DatePath  string
	ClassPath string

	// TimestampFormat specifies how to parse timestamps and dates:
	//   "rfc3339"    - RFC3339 strings (default)
	//   "unix"       - Unix seconds
	//   "unix_milli" - Unix milliseconds
	TimestampFormat string

	// Start and End bound the requested range for templated URLs.
	Start time.Time
	End   time.Time

	// HTTPClient is optional; if nil a default client with timeout is used.
	HTTPClient *http.Client

	// TemplateVars are custom variables available in URL and header
	// templates.
	TemplateVars map[string]string
}

func (h *HTTPSource) Name() string { return "http" }

// Load implements Source. The load series and the day-class table are
// fetched in sequence; when DaysURL is empty the first response is reused.
func (h *HTTPSource) Load(ctx context.Context) (*Dataset, error) {
	if err := h.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("http source: %w", err)
	}

	data := h.templateData()

	sampleBody, err := h.fetch(ctx, h.SamplesURL, data)
	if err != nil {
		return nil, fmt.Errorf("fetch samples: %w", err)
	}

	dayBody := sampleBody
	if h.DaysURL != "" && h.DaysURL != h.SamplesURL {
		dayBody, err = h.fetch(ctx, h.DaysURL, data)
		if err != nil {
			return nil, fmt.Errorf("fetch days: %w", err)
		}
	}

	samples, err := h.extractSamples(sampleBody)
	if err != nil {
		return nil, err
	}
	days, err := h.extractDays(dayBody)
	if err != nil {
		return nil, err
	}

	return &Dataset{Samples: samples, Days: days}, nil
}

func (h *HTTPSource) templateData() map[string]any {
	data := map[string]any{
		"Start":        h.Start.Unix(),
		"End":          h.End.Unix(),
		"StartRFC3339": h.Start.UTC().Format(time.RFC3339),
		"EndRFC3339":   h.End.UTC().Format(time.RFC3339),
	}
	for k, v := range h.TemplateVars {
		data[k] = v
	}
	return data
}

func (h *HTTPSource) fetch(ctx context.Context, rawURL string, data map[string]any) ([]byte, error) {
	url, err := renderTemplate(rawURL, data)
	if err != nil {
		return nil, fmt.Errorf("render url template: %w", err)
	}

	cli := h.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	for key, value := range h.Headers {
		rendered, err := renderTemplate(value, data)
		if err != nil {
			return nil, fmt.Errorf("render header %s: %w", key, err)
		}
		req.Header.Set(key, rendered)
	}

	resp, err := cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

func (h *HTTPSource) extractSamples(body []byte) ([]resample.Sample, error) {
	timestamps := gjson.GetBytes(body, h.TimestampPath)
	loads := gjson.GetBytes(body, h.LoadPath)

	if !timestamps.Exists() {
		return nil, faults.Schema("timestamp path %q not found in response", h.TimestampPath)
	}
	if !loads.Exists() {
		return nil, faults.Schema("load path %q not found in response", h.LoadPath)
	}

	tsArray := timestamps.Array()
	loadArray := loads.Array()
	if len(tsArray) != len(loadArray) {
		return nil, faults.Schema("load count (%d) != timestamp count (%d)", len(loadArray), len(tsArray))
	}
	if len(tsArray) == 0 {
		return nil, faults.Schema("sample table has no rows")
	}

	samples := make([]resample.Sample, len(tsArray))
	for i := range tsArray {
		ts, err := h.parseTimestamp(tsArray[i])
		if err != nil {
			return nil, faults.Schema("parse timestamp[%d]: %v", i, err)
		}
		if loadArray[i].Type != gjson.Number {
			return nil, faults.Schema("load[%d] = %s is not numeric", i, loadArray[i].Raw)
		}
		samples[i] = resample.Sample{Timestamp: ts, Load: loadArray[i].Float()}
	}
	return samples, nil
}

func (h *HTTPSource) extractDays(body []byte) ([]workday.Day, error) {
	dates := gjson.GetBytes(body, h.DatePath)
	classes := gjson.GetBytes(body, h.ClassPath)

	if !dates.Exists() {
		return nil, faults.Schema("date path %q not found in response", h.DatePath)
	}
	if !classes.Exists() {
		return nil, faults.Schema("class path %q not found in response", h.ClassPath)
	}

	dateArray := dates.Array()
	classArray := classes.Array()
	if len(dateArray) != len(classArray) {
		return nil, faults.Schema("class count (%d) != date count (%d)", len(classArray), len(dateArray))
	}

	days := make([]workday.Day, len(dateArray))
	for i := range dateArray {
		date, err := h.parseTimestamp(dateArray[i])
		if err != nil {
			return nil, faults.Schema("parse date[%d]: %v", i, err)
		}
		class, err := workday.ParseClass(classArray[i].String())
		if err != nil {
			return nil, fmt.Errorf("day %d: %w", i, err)
		}
		days[i] = workday.Day{Date: date, Class: class}
	}
	return days, nil
}

func (h *HTTPSource) parseTimestamp(value gjson.Result) (time.Time, error) {
	switch h.TimestampFormat {
	case "", "rfc3339":
		return parseTimestamp(value.String())
	case "unix":
		return time.Unix(value.Int(), 0).UTC(), nil
	case "unix_milli":
		return time.UnixMilli(value.Int()).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp format: %s", h.TimestampFormat)
	}
}

// ValidateConfig checks if the source configuration is valid.
func (h *HTTPSource) ValidateConfig() error {
	if h.SamplesURL == "" {
		return errors.New("samplesUrl is required")
	}
	if h.TimestampPath == "" || h.LoadPath == "" {
		return errors.New("timestampPath and loadPath are required")
	}
	if h.DatePath == "" || h.ClassPath == "" {
		return errors.New("datePath and classPath are required")
	}

	switch h.TimestampFormat {
	case "", "rfc3339", "unix", "unix_milli":
	default:
		return fmt.Errorf("invalid timestampFormat: %s (must be rfc3339, unix, or unix_milli)", h.TimestampFormat)
	}
	return nil
}

// renderTemplate renders a text template with the given data.
func renderTemplate(tmplStr string, data map[string]any) (string, error) {
	if !strings.Contains(tmplStr, "{{") {
		return tmplStr, nil
	}

	tmpl, err := template.New("").Option("missingkey=error").Parse(tmplStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
