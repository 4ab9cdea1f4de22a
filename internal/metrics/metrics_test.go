package metrics

import "testing"

func TestMetricsIncrement(t *testing.T) {
	Reset()
	defer Reset()

	WebhookReceived()
	WebhookReceived()
	WebhookProcessed()
	WebhookIgnored()
	ReleaseCreated()
	PullRequestStored()
	CommitStored(3)
	ChangelogGenerated()
	FallbackRender()

	m := Get()
	if m.WebhooksReceived != 2 {
		t.Errorf("WebhooksReceived = %d, want 2", m.WebhooksReceived)
	}
	if m.WebhooksProcessed != 1 {
		t.Errorf("WebhooksProcessed = %d, want 1", m.WebhooksProcessed)
	}
	if m.WebhooksIgnored != 1 {
		t.Errorf("WebhooksIgnored = %d, want 1", m.WebhooksIgnored)
	}
	if m.CommitsStored != 3 {
		t.Errorf("CommitsStored = %d, want 3", m.CommitsStored)
	}
	if m.FallbackRenders != 1 {
		t.Errorf("FallbackRenders = %d, want 1", m.FallbackRenders)
	}
}

func TestMetricsReset(t *testing.T) {
	WebhookReceived()
	SignatureFailure()
	Reset()

	m := Get()
	if m != (Metrics{}) {
		t.Errorf("metrics after Reset = %+v, want all zero", m)
	}
}
