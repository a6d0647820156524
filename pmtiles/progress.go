package pmtiles

import "github.com/schollz/progressbar/v3"

// ProgressObserver receives fractional completion updates (0.0 to 1.0)
// from a Writer's Complete pass and may request cancellation by returning
// true. Writer checks the return value between tile emissions and aborts
// with a Cancelled error when it does.
type ProgressObserver interface {
	OnProgress(fraction float64) (cancel bool)
}

// barProgressObserver adapts a schollz/progressbar bar into a
// ProgressObserver, translating fractional updates into Add deltas. It
// never requests cancellation.
type barProgressObserver struct {
	bar      *progressbar.ProgressBar
	total    int64
	reported int64
}

// NewBarProgressObserver returns a ProgressObserver that renders a
// count-based progress bar with the given total and description. Pass a
// negative or zero total to suppress rendering: OnProgress then becomes a
// no-op, which is how callers run quietly.
func NewBarProgressObserver(total int64, description string) ProgressObserver {
	if total <= 0 {
		return &barProgressObserver{total: total}
	}
	return &barProgressObserver{bar: progressbar.Default(total, description), total: total}
}

func (b *barProgressObserver) OnProgress(fraction float64) bool {
	if b.total <= 0 {
		return false
	}
	target := int64(fraction * float64(b.total))
	if delta := target - b.reported; delta > 0 {
		if b.bar != nil {
			b.bar.Add(int(delta))
		}
		b.reported = target
	}
	return false
}
