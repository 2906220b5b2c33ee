package carrier

import (
	"net/http"
	"strings"

	twclient "github.com/twilio/twilio-go/client"
)

// SignatureHeader carries the carrier's HMAC of the callback request.
const SignatureHeader = "X-Twilio-Signature"

// SignatureVerifier checks that a webhook request was signed by the carrier.
type SignatureVerifier struct {
	validator twclient.RequestValidator
	baseURL   string
}

// NewSignatureVerifier returns a verifier keyed by the account auth token.
// baseURL is the public origin the carrier calls, without a trailing slash.
func NewSignatureVerifier(authToken, baseURL string) *SignatureVerifier {
	return &SignatureVerifier{
		validator: twclient.NewRequestValidator(authToken),
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// Verify reports whether r carries a valid signature. r.ParseForm must have
// been called.
func (v *SignatureVerifier) Verify(r *http.Request) bool {
	sig := r.Header.Get(SignatureHeader)
	if sig == "" {
		return false
	}

	params := make(map[string]string, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	return v.validator.Validate(v.baseURL+r.URL.RequestURI(), params, sig)
}
