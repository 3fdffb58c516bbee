package controllers

import (
	"testing"
	"time"
)

func TestEventDeduperSeesRepeats(t *testing.T) {
	d := newEventDeduper(time.Second)

	if d.Check("messages.upsert:ABC") {
		t.Fatal("first sighting reported as duplicate")
	}
	if !d.Check("messages.upsert:ABC") {
		t.Fatal("second sighting not reported as duplicate")
	}
	if d.Check("messages.upsert:XYZ") {
		t.Fatal("different key reported as duplicate")
	}
}

func TestEventDeduperExpires(t *testing.T) {
	d := newEventDeduper(30 * time.Millisecond)

	d.Check("k")
	time.Sleep(60 * time.Millisecond)
	if d.Check("k") {
		t.Fatal("key survived past TTL")
	}
}

func TestEventDeduperReinsertRenewsExpiry(t *testing.T) {
	d := newEventDeduper(50 * time.Millisecond)

	d.Check("k")
	time.Sleep(30 * time.Millisecond)
	// re-inserção renova a expiração; o timer antigo não pode apagar a nova
	d.Check("k")
	time.Sleep(30 * time.Millisecond)
	if !d.Check("k") {
		t.Fatal("renewed key expired on the old timer")
	}
}

func TestEventFingerprintFallsBackToTimestamp(t *testing.T) {
	p := EvolutionWebhookPayload{Event: "messages.upsert"}
	a := EventFingerprint(p)
	time.Sleep(time.Millisecond)
	b := EventFingerprint(p)
	if a == b {
		t.Fatal("fingerprints without identifier should not collide")
	}
}

func TestClaimProcessedEvent(t *testing.T) {
	dbc := newTestDB(t)

	fresh, err := ClaimProcessedEvent(dbc, "messages.upsert:ABC", time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !fresh {
		t.Fatal("first claim should be fresh")
	}

	fresh, err = ClaimProcessedEvent(dbc, "messages.upsert:ABC", time.Minute)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if fresh {
		t.Fatal("second claim within TTL should be duplicate")
	}
}

func TestClaimProcessedEventRecyclesExpired(t *testing.T) {
	dbc := newTestDB(t)

	if _, err := ClaimProcessedEvent(dbc, "k", 10*time.Millisecond); err != nil {
		t.Fatalf("claim: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	fresh, err := ClaimProcessedEvent(dbc, "k", time.Minute)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if !fresh {
		t.Fatal("expired row should be recycled as fresh")
	}
}
