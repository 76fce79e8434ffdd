package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHandshakeCounters(t *testing.T) {
	before := testutil.ToFloat64(handshakeOutcomes.WithLabelValues("connected"))
	RecordHandshakeOutcome("connected")
	if got := testutil.ToFloat64(handshakeOutcomes.WithLabelValues("connected")); got != before+1 {
		t.Fatalf("outcome counter got=%v want=%v", got, before+1)
	}

	rejected := testutil.ToFloat64(calibrationRejected)
	RecordCalibrationRejected()
	if got := testutil.ToFloat64(calibrationRejected); got != rejected+1 {
		t.Fatalf("rejected counter got=%v want=%v", got, rejected+1)
	}

	errs := testutil.ToFloat64(linkFrames.WithLabelValues("in", "error"))
	RecordLinkFrame("in", false)
	if got := testutil.ToFloat64(linkFrames.WithLabelValues("in", "error")); got != errs+1 {
		t.Fatalf("link frame counter got=%v want=%v", got, errs+1)
	}
}
