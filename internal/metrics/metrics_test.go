package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDispatch(t *testing.T) {
	before := testutil.ToFloat64(Dispatches.WithLabelValues("update_ticket", "refuse"))
	RecordDispatch("update_ticket", "refuse")
	after := testutil.ToFloat64(Dispatches.WithLabelValues("update_ticket", "refuse"))
	if after-before != 1 {
		t.Errorf("expected counter to increase by 1, got %v", after-before)
	}
}

func TestRecordPage(t *testing.T) {
	okBefore := testutil.ToFloat64(Pages.WithLabelValues("slack", "ok"))
	errBefore := testutil.ToFloat64(Pages.WithLabelValues("slack", "error"))

	RecordPage("slack", nil)
	RecordPage("slack", errors.New("boom"))

	if testutil.ToFloat64(Pages.WithLabelValues("slack", "ok"))-okBefore != 1 {
		t.Error("expected one ok page")
	}
	if testutil.ToFloat64(Pages.WithLabelValues("slack", "error"))-errBefore != 1 {
		t.Error("expected one failed page")
	}
}

func TestRecordVerdictAndTurn(t *testing.T) {
	before := testutil.ToFloat64(Verdicts.WithLabelValues("blocked", "low"))
	RecordVerdict("blocked", "low")
	if testutil.ToFloat64(Verdicts.WithLabelValues("blocked", "low"))-before != 1 {
		t.Error("expected verdict counter to increase")
	}
	turnsBefore := testutil.ToFloat64(Turns.WithLabelValues("busy"))
	RecordTurn("busy")
	if testutil.ToFloat64(Turns.WithLabelValues("busy"))-turnsBefore != 1 {
		t.Error("expected turn counter to increase")
	}
}
