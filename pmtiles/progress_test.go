package pmtiles

import "testing"

func TestBarProgressObserverReportsDeltaAndNeverCancels(t *testing.T) {
	bo := &barProgressObserver{total: 100}

	if cancel := bo.OnProgress(0.25); cancel {
		t.Error("expected OnProgress to never request cancellation")
	}
	if cancel := bo.OnProgress(0.5); cancel {
		t.Error("expected OnProgress to never request cancellation")
	}
	if bo.reported != 50 {
		t.Errorf("expected reported to track 50%% of total, got %d", bo.reported)
	}
}

func TestBarProgressObserverZeroTotal(t *testing.T) {
	observer := NewBarProgressObserver(0, "quiet")
	if cancel := observer.OnProgress(0.5); cancel {
		t.Error("expected zero-total observer to never cancel")
	}
}

func TestBarProgressObserverNegativeTotal(t *testing.T) {
	observer := NewBarProgressObserver(-1, "quiet")
	if cancel := observer.OnProgress(1); cancel {
		t.Error("expected negative-total observer to never cancel")
	}
}

func TestBarProgressObserverIgnoresBackwardFraction(t *testing.T) {
	bo := &barProgressObserver{total: 100, reported: 80}
	if cancel := bo.OnProgress(0.5); cancel {
		t.Error("expected OnProgress to never request cancellation")
	}
	if bo.reported != 80 {
		t.Errorf("expected reported to stay at 80 when fraction regresses, got %d", bo.reported)
	}
}
