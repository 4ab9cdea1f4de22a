package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/relnotary/relnotary/internal/metrics"
)

// Delivery is a verified GitHub webhook delivery. The body is the exact raw
// request bytes that the signature was computed over.
type Delivery struct {
	EventType  string
	DeliveryID string
	Body       []byte
}

// DeliveryHandler is called with a verified webhook delivery and owns the
// response from that point on. A 5xx response makes GitHub redeliver, so
// handlers must be idempotent.
type DeliveryHandler func(w http.ResponseWriter, r *http.Request, d *Delivery)

// GitHubHandler handles GitHub webhook requests.
type GitHubHandler struct {
	secret  string
	handler DeliveryHandler
}

// NewGitHubHandler creates a new GitHub webhook handler.
func NewGitHubHandler(secret string, handler DeliveryHandler) *GitHubHandler {
	return &GitHubHandler{
		secret:  secret,
		handler: handler,
	}
}

// ServeHTTP implements http.Handler.
func (h *GitHubHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	metrics.WebhookReceived()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if !Verify(body, r.Header.Get("X-Hub-Signature-256"), h.secret) {
		metrics.SignatureFailure()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"code":"AUTH_FAILED","message":"invalid signature"}}`)
		return
	}

	deliveryID := r.Header.Get("X-GitHub-Delivery")
	if deliveryID == "" {
		// Correlation only; dedupe is derived from entity identity downstream.
		deliveryID = uuid.NewString()
	}

	d := &Delivery{
		EventType:  r.Header.Get("X-GitHub-Event"),
		DeliveryID: deliveryID,
		Body:       body,
	}

	h.handler(w, r, d)
}

// Verify checks a GitHub webhook signature against the raw request body.
// The header carries "sha256=<hex>" where the digest is an HMAC-SHA256 of the
// body keyed by the shared secret. Returns false for a missing or malformed
// header, or an empty secret.
func Verify(body []byte, headerSignature, secret string) bool {
	if secret == "" {
		return false
	}
	if !strings.HasPrefix(headerSignature, "sha256=") {
		return false
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(headerSignature, "sha256="))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	return hmac.Equal(sig, expected)
}
