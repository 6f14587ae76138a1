package dispatch

import (
	"fmt"
	"net/http"
	"strings"
)

// Extractor probes a backend response for a replacement token at one
// location. Extractors run in their declared order; the first non-empty
// match wins.
type Extractor struct {
	name  string
	probe func(header http.Header, body map[string]any) string
}

// Name returns the spec this extractor was built from ("header:X" or
// "body:field").
func (e Extractor) Name() string { return e.name }

// HeaderExtractor probes a response header for a replacement token.
func HeaderExtractor(name string) Extractor {
	return Extractor{
		name: "header:" + name,
		probe: func(header http.Header, _ map[string]any) string {
			if header == nil {
				return ""
			}
			return strings.TrimSpace(header.Get(name))
		},
	}
}

// BodyExtractor probes a JSON body field for a replacement token.
func BodyExtractor(field string) Extractor {
	return Extractor{
		name: "body:" + field,
		probe: func(_ http.Header, body map[string]any) string {
			if v, ok := body[field].(string); ok {
				return strings.TrimSpace(v)
			}
			return ""
		},
	}
}

// ParseExtractors builds the ordered extractor list from configuration
// strings of the form "header:<Name>" or "body:<field>".
func ParseExtractors(specs []string) ([]Extractor, error) {
	extractors := make([]Extractor, 0, len(specs))
	for _, spec := range specs {
		kind, arg, ok := strings.Cut(spec, ":")
		if !ok || strings.TrimSpace(arg) == "" {
			return nil, fmt.Errorf("invalid recovery probe %q (want header:<name> or body:<field>)", spec)
		}
		arg = strings.TrimSpace(arg)

		switch strings.TrimSpace(kind) {
		case "header":
			extractors = append(extractors, HeaderExtractor(arg))
		case "body":
			extractors = append(extractors, BodyExtractor(arg))
		default:
			return nil, fmt.Errorf("unknown recovery probe kind %q in %q", kind, spec)
		}
	}
	return extractors, nil
}

// probeResponse runs the extractors over a failure response and returns
// the first non-empty token, with the name of the extractor that found it.
func probeResponse(extractors []Extractor, header http.Header, body map[string]any) (string, string) {
	for _, e := range extractors {
		if token := e.probe(header, body); token != "" {
			return token, e.name
		}
	}
	return "", ""
}

// probeBody runs only the body extractors. Used for the token-upgrade
// check on successful responses and the salvage path on failures, where
// the backend delivers tokens in the body alone.
func probeBody(extractors []Extractor, body map[string]any) string {
	for _, e := range extractors {
		if !strings.HasPrefix(e.name, "body:") {
			continue
		}
		if token := e.probe(nil, body); token != "" {
			return token
		}
	}
	return ""
}
