package provider

import (
	"net/http"

	twclient "github.com/twilio/twilio-go/client"
	"github.com/twilio/twilio-go/twiml"
)

// SignatureHeader carries Twilio's HMAC of the callback URL and form params.
const SignatureHeader = "X-Twilio-Signature"

// EmptyTwiML is the acknowledgment used if the TwiML encoder ever fails.
const EmptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// AckTwiML returns an empty messaging response telling Twilio the callback was handled.
func AckTwiML() string {
	doc, err := twiml.Messages([]twiml.Element{})
	if err != nil || doc == "" {
		return EmptyTwiML
	}
	return doc
}

// Verifier checks that webhook callbacks were signed with the account's auth token.
type Verifier struct {
	validator twclient.RequestValidator
	publicURL string
}

// NewVerifier returns a verifier for callbacks addressed to publicURL.
// publicURL must be the exact URL configured in the Twilio console.
func NewVerifier(authToken, publicURL string) *Verifier {
	return &Verifier{
		validator: twclient.NewRequestValidator(authToken),
		publicURL: publicURL,
	}
}

// Verify reports whether r carries a valid signature. r's form must already be parsed.
func (v *Verifier) Verify(r *http.Request) bool {
	sig := r.Header.Get(SignatureHeader)
	if sig == "" {
		return false
	}
	params := make(map[string]string, len(r.PostForm))
	for k, vals := range r.PostForm {
		if len(vals) > 0 {
			params[k] = vals[0]
		}
	}
	return v.validator.Validate(v.publicURL, params, sig)
}
