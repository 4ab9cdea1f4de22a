package metrics

import (
	"sync/atomic"
)

// Metrics tracks operational metrics.
type Metrics struct {
	WebhooksReceived    uint64 `json:"webhooks_received"`
	WebhooksProcessed   uint64 `json:"webhooks_processed"`
	WebhooksIgnored     uint64 `json:"webhooks_ignored"`
	SignatureFailures   uint64 `json:"signature_failures"`
	ReleasesCreated     uint64 `json:"releases_created"`
	PullRequestsStored  uint64 `json:"pull_requests_stored"`
	CommitsStored       uint64 `json:"commits_stored"`
	ChangelogsGenerated uint64 `json:"changelogs_generated"`
	FallbackRenders     uint64 `json:"fallback_renders"`
}

var global = &Metrics{}

// WebhookReceived increments the count of webhooks received.
func WebhookReceived() { atomic.AddUint64(&global.WebhooksReceived, 1) }

// WebhookProcessed increments the count of webhooks fully applied to the store.
func WebhookProcessed() { atomic.AddUint64(&global.WebhooksProcessed, 1) }

// WebhookIgnored increments the count of webhooks acknowledged without effect.
func WebhookIgnored() { atomic.AddUint64(&global.WebhooksIgnored, 1) }

// SignatureFailure increments the count of rejected webhook signatures.
func SignatureFailure() { atomic.AddUint64(&global.SignatureFailures, 1) }

// ReleaseCreated increments the count of releases created.
func ReleaseCreated() { atomic.AddUint64(&global.ReleasesCreated, 1) }

// PullRequestStored increments the count of pull requests stored.
func PullRequestStored() { atomic.AddUint64(&global.PullRequestsStored, 1) }

// CommitStored adds n to the count of commits stored.
func CommitStored(n int) { atomic.AddUint64(&global.CommitsStored, uint64(n)) }

// ChangelogGenerated increments the count of changelogs rendered.
func ChangelogGenerated() { atomic.AddUint64(&global.ChangelogsGenerated, 1) }

// FallbackRender increments the count of deterministic fallback renders.
func FallbackRender() { atomic.AddUint64(&global.FallbackRenders, 1) }

// Get returns a snapshot of the current metrics.
func Get() Metrics {
	return Metrics{
		WebhooksReceived:    atomic.LoadUint64(&global.WebhooksReceived),
		WebhooksProcessed:   atomic.LoadUint64(&global.WebhooksProcessed),
		WebhooksIgnored:     atomic.LoadUint64(&global.WebhooksIgnored),
		SignatureFailures:   atomic.LoadUint64(&global.SignatureFailures),
		ReleasesCreated:     atomic.LoadUint64(&global.ReleasesCreated),
		PullRequestsStored:  atomic.LoadUint64(&global.PullRequestsStored),
		CommitsStored:       atomic.LoadUint64(&global.CommitsStored),
		ChangelogsGenerated: atomic.LoadUint64(&global.ChangelogsGenerated),
		FallbackRenders:     atomic.LoadUint64(&global.FallbackRenders),
	}
}

// Reset resets all metrics to zero (useful for testing).
func Reset() {
	atomic.StoreUint64(&global.WebhooksReceived, 0)
	atomic.StoreUint64(&global.WebhooksProcessed, 0)
	atomic.StoreUint64(&global.WebhooksIgnored, 0)
	atomic.StoreUint64(&global.SignatureFailures, 0)
	atomic.StoreUint64(&global.ReleasesCreated, 0)
	atomic.StoreUint64(&global.PullRequestsStored, 0)
	atomic.StoreUint64(&global.CommitsStored, 0)
	atomic.StoreUint64(&global.ChangelogsGenerated, 0)
	atomic.StoreUint64(&global.FallbackRenders, 0)
}
