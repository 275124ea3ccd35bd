package components

import (
	"github.com/samber/lo"
)

// SeekSlider is a progress bar the user can drag. While a drag is active the
// bar shows the drag target instead of the engine position, and no seek is
// issued until Release.
type SeekSlider struct {
	Bar ProgressBar

	// StepMillis is how far one DragBy step moves the target.
	StepMillis int64

	positionMillis int64
	durationMillis int64
	dragging       bool
	targetMillis   int64
}

// NewSeekSlider creates a slider with 5 second steps.
func NewSeekSlider(width int) SeekSlider {
	return SeekSlider{
		Bar:        NewProgressBar(width),
		StepMillis: 5000,
	}
}

// SetPosition records the engine position and duration. It does not move
// the drag target.
func (s *SeekSlider) SetPosition(positionMillis, durationMillis int64) {
	s.positionMillis = positionMillis
	s.durationMillis = durationMillis
}

// Dragging reports whether a drag is in progress.
func (s SeekSlider) Dragging() bool {
	return s.dragging
}

// BeginDrag starts a drag at the current engine position.
func (s *SeekSlider) BeginDrag() {
	if s.dragging {
		return
	}
	s.dragging = true
	s.targetMillis = s.positionMillis
}

// DragTo moves the drag target, starting a drag if needed.
func (s *SeekSlider) DragTo(positionMillis int64) {
	s.BeginDrag()
	s.targetMillis = s.clamp(positionMillis)
}

// DragBy moves the drag target by steps of StepMillis.
func (s *SeekSlider) DragBy(steps int) {
	s.BeginDrag()
	s.targetMillis = s.clamp(s.targetMillis + int64(steps)*s.StepMillis)
}

// Release ends the drag and returns the position to seek to. ok is false
// when no drag was in progress.
func (s *SeekSlider) Release() (positionMillis int64, ok bool) {
	if !s.dragging {
		return 0, false
	}
	s.dragging = false
	s.positionMillis = s.targetMillis
	return s.targetMillis, true
}

// Cancel ends the drag without seeking.
func (s *SeekSlider) Cancel() {
	s.dragging = false
}

// DisplayedMillis is the position the slider shows.
func (s SeekSlider) DisplayedMillis() int64 {
	if s.dragging {
		return s.targetMillis
	}
	return s.positionMillis
}

func (s SeekSlider) clamp(ms int64) int64 {
	if s.durationMillis <= 0 {
		return max(ms, 0)
	}
	return lo.Clamp(ms, 0, s.durationMillis)
}

// View renders the slider at its displayed position.
func (s SeekSlider) View() string {
	bar := s.Bar
	bar.SetProgress(s.DisplayedMillis(), s.durationMillis)
	return bar.View()
}
