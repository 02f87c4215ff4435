package tooling

import "testing"

func TestCompletionLatchIsOneWay(t *testing.T) {
	var latch CompletionState
	if latch.Done() {
		t.Fatalf("new latch must not be done")
	}
	if !latch.MarkDone("checkout confirmed") {
		t.Fatalf("first MarkDone must succeed")
	}
	if latch.MarkDone("second attempt") {
		t.Fatalf("second MarkDone must be refused")
	}
	if !latch.Done() {
		t.Fatalf("latch must stay done")
	}
	if got := latch.Reason(); got != "checkout confirmed" {
		t.Fatalf("original reason must survive, got %q", got)
	}
}

func TestSignalsCompletion(t *testing.T) {
	tests := []struct {
		output   string
		endpoint string
		want     bool
	}{
		{"called /respond, Task Finished.", "/respond", true},
		{"all done " + TaskFinishedMarker, "/respond", true},
		{"Task Finished without the endpoint", "/respond", false},
		{"hit /respond but still thinking", "/respond", false},
		{"Task Finished via /checkout", "", false},
	}
	for _, tt := range tests {
		if got := SignalsCompletion(tt.output, tt.endpoint); got != tt.want {
			t.Fatalf("SignalsCompletion(%q, %q) = %v, expected %v",
				tt.output, tt.endpoint, got, tt.want)
		}
	}
}
