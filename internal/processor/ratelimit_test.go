package processor

import (
	"testing"
	"time"
)

func TestAdmitWithinLimit(t *testing.T) {
	l := newSlidingWindowLimiter(2, time.Minute)
	now := time.Now()

	if !l.Admit("trader1", now) {
		t.Fatal("expected first admit to succeed")
	}
	if !l.Admit("trader1", now) {
		t.Fatal("expected second admit to succeed")
	}
	if l.Admit("trader1", now) {
		t.Fatal("expected third admit within window to be denied")
	}
}

func TestAdmitSlidesWindowForward(t *testing.T) {
	l := newSlidingWindowLimiter(1, time.Minute)
	start := time.Now()

	if !l.Admit("trader1", start) {
		t.Fatal("expected first admit to succeed")
	}
	if l.Admit("trader1", start.Add(30*time.Second)) {
		t.Fatal("expected admit inside window to be denied")
	}
	if !l.Admit("trader1", start.Add(61*time.Second)) {
		t.Fatal("expected admit after window to succeed once stale entry expires")
	}
}

func TestAdmitTracksTradersIndependently(t *testing.T) {
	l := newSlidingWindowLimiter(1, time.Minute)
	now := time.Now()

	if !l.Admit("trader1", now) {
		t.Fatal("expected trader1 first admit to succeed")
	}
	if !l.Admit("trader2", now) {
		t.Fatal("expected trader2 to have its own independent window")
	}
}
