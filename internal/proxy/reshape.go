package proxy

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

type Kind int

const (
	KindOpaque Kind = iota
	KindJSON
	// KindJSONFallback marks a body that claimed to be JSON but did not parse;
	// the raw text is wrapped under FallbackKey.
	KindJSONFallback
)

const FallbackKey = "raw"

type Response struct {
	Status       int
	ContentType  string
	CacheControl string
	Kind         Kind
	Body         []byte
}

func (r *Response) Write(w http.ResponseWriter) {
	if r.ContentType != "" {
		w.Header().Set("Content-Type", r.ContentType)
	}
	if r.CacheControl != "" {
		w.Header().Set("Cache-Control", r.CacheControl)
	}
	w.WriteHeader(r.Status)
	_, _ = w.Write(r.Body)
}

// Reshape maps a backend reply onto the caller's response. Only Content-Type and
// Cache-Control survive; a zero status becomes 502. Empty bodies are never wrapped.
func Reshape(status int, header http.Header, body []byte) *Response {
	if status <= 0 {
		status = http.StatusBadGateway
	}
	ct := header.Get("Content-Type")
	resp := &Response{
		Status:       status,
		ContentType:  ct,
		CacheControl: header.Get("Cache-Control"),
		Kind:         KindOpaque,
		Body:         body,
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !looksJSON(ct, body) {
		return resp
	}
	if resp.ContentType == "" {
		resp.ContentType = "application/json"
	}
	if json.Valid(trimmed) {
		resp.Kind = KindJSON
		resp.Body = trimmed
		return resp
	}
	resp.Kind = KindJSONFallback
	resp.Body = mustJSON(map[string]string{FallbackKey: string(body)})
	return resp
}

func looksJSON(contentType string, body []byte) bool {
	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			mt = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
		}
		return mt == "application/json" || strings.HasSuffix(mt, "+json")
	}
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

func TransportFailure(err error, target string) *Response {
	return jsonError(http.StatusBadGateway, map[string]string{
		"error":  "upstream_unreachable",
		"detail": transportDetail(err),
		"target": redactTarget(target),
	})
}

// transportDetail describes err without the url that net/http embeds in it.
func transportDetail(err error) string {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Op + " " + redactTarget(ue.URL) + ": " + ue.Err.Error()
	}
	return err.Error()
}

func Misconfigured() *Response {
	return jsonError(http.StatusInternalServerError, map[string]string{
		"error": "backend_not_configured",
		"hint":  "set proxy.base_url (env PROXY_BASE_URL) to the backend origin",
	})
}

func ErrorResponse(status int, code string) *Response {
	return jsonError(status, map[string]string{"error": code})
}

func jsonError(status int, body map[string]string) *Response {
	return &Response{
		Status:       status,
		ContentType:  "application/json",
		CacheControl: "no-store",
		Kind:         KindJSON,
		Body:         mustJSON(body),
	}
}

// redactTarget drops the query and any userinfo from the attempted url.
func redactTarget(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(`{}`)
	}
	return b
}
