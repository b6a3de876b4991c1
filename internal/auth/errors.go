package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrEmptySecret   = errors.New("token secret is empty")
	ErrInvalidClaims = errors.New("invalid claims")
	ErrEmptyToken    = errors.New("empty token")
)

type Code string

const (
	CodeMalformed        Code = "malformed"
	CodeBadSignature     Code = "bad_signature"
	CodeBadPayload       Code = "bad_payload"
	CodeExpired          Code = "expired"
	CodeInvalidClaims    Code = "invalid_claims"
	CodeIssuerMismatch   Code = "issuer_mismatch"
	CodeAudienceMismatch Code = "audience_mismatch"
)

type VerifyError struct {
	Code Code
	Err  error
}

func (e *VerifyError) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *VerifyError) Unwrap() error { return e.Err }

// CodeOf returns the verification failure code of err, or "" when err is not a *VerifyError.
func CodeOf(err error) Code {
	var ve *VerifyError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}

func classify(err error) *VerifyError {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return &VerifyError{Code: CodeExpired, Err: err}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return &VerifyError{Code: CodeBadSignature, Err: err}
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return &VerifyError{Code: CodeIssuerMismatch, Err: err}
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return &VerifyError{Code: CodeAudienceMismatch, Err: err}
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing), errors.Is(err, jwt.ErrTokenInvalidClaims):
		return &VerifyError{Code: CodeInvalidClaims, Err: err}
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return &VerifyError{Code: CodeBadPayload, Err: err}
	default:
		return &VerifyError{Code: CodeMalformed, Err: err}
	}
}
