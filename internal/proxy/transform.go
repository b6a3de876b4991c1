package proxy

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/NordCoder/hbgate/internal/identity"
)

const (
	VersionPrefix = "api/v1"

	HeaderUserID    = "X-WP-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderUserRoles = "X-WP-User-Roles"
	HeaderRequestID = "X-Request-Id"
)

var (
	ErrBackendNotConfigured = errors.New("backend base url is not configured")
	ErrBadPath              = errors.New("path is ambiguous or escapes the api root")
)

type Inbound struct {
	Path     string
	RawQuery string
	Method   string
	Header   http.Header
	Body     []byte
}

type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// NormalizePath strips leading slashes and makes sure the path starts with api/v1 exactly once.
func NormalizePath(p string) string {
	p = strings.TrimLeft(p, "/")
	if p == VersionPrefix || strings.HasPrefix(p, VersionPrefix+"/") {
		return p
	}
	return VersionPrefix + "/" + p
}

// SubPath is the normalized path relative to the versioned api root.
func SubPath(p string) string {
	return strings.TrimLeft(strings.TrimPrefix(NormalizePath(p), VersionPrefix), "/")
}

// APIBase turns a configured backend url into the versioned api root:
// ".../api/v1" is kept, ".../api" gets "/v1", anything else gets "/api/v1".
func APIBase(base string) (string, error) {
	b := strings.TrimRight(strings.TrimSpace(base), "/")
	if b == "" {
		return "", ErrBackendNotConfigured
	}
	switch {
	case strings.HasSuffix(b, "/"+VersionPrefix):
		return b, nil
	case strings.HasSuffix(b, "/api"):
		return b + "/v1", nil
	default:
		return b + "/" + VersionPrefix, nil
	}
}

// DecodePath returns p as the backend will read it, once unescaped. Paths the
// backend could split or resolve differently from the caller are rejected:
// encoded slashes or backslashes, dot segments, and raw query or fragment marks.
func DecodePath(p string) (string, error) {
	lower := strings.ToLower(p)
	if strings.Contains(lower, "%2f") || strings.Contains(lower, "%5c") || strings.ContainsAny(p, "\\?#") {
		return "", ErrBadPath
	}
	d, err := url.PathUnescape(p)
	if err != nil {
		return "", ErrBadPath
	}
	for _, seg := range strings.Split(d, "/") {
		if seg == "." || seg == ".." {
			return "", ErrBadPath
		}
	}
	return d, nil
}

func TargetURL(base, path, rawQuery string) (string, error) {
	apiBase, err := APIBase(base)
	if err != nil {
		return "", err
	}
	p := NormalizePath(path)
	if _, err := DecodePath(p); err != nil {
		return "", err
	}
	target := strings.TrimSuffix(apiBase, "/"+VersionPrefix) + "/" + p
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	return target, nil
}

func carriesBody(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodDelete:
		return false
	}
	return true
}

// BuildOutbound derives the backend request. Identity headers are only set
// for a resolved identity, and Authorization only for a verified credential.
func BuildOutbound(base string, in Inbound, id *identity.Identity) (*Request, error) {
	target, err := TargetURL(base, in.Path, in.RawQuery)
	if err != nil {
		return nil, err
	}
	method := strings.ToUpper(in.Method)
	if method == "" {
		method = http.MethodGet
	}

	h := http.Header{}
	h.Set("Accept", "application/json")
	if ct := in.Header.Get("Content-Type"); ct != "" {
		h.Set("Content-Type", ct)
	}
	if id != nil {
		if id.Credential != "" {
			h.Set("Authorization", "Bearer "+id.Credential)
		}
		h.Set(HeaderUserID, strconv.FormatInt(id.UserID, 10))
		if id.Email != "" {
			h.Set(HeaderUserEmail, id.Email)
		}
		h.Set(HeaderUserRoles, strings.Join(id.Roles, ","))
	}

	out := &Request{Method: method, URL: target, Header: h}
	if carriesBody(method) {
		out.Body = in.Body
	}
	return out, nil
}
