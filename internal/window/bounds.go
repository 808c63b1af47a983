package window

import "github.com/bryanchriswhite/livejar/internal/config"

// FitBounds returns the saved geometry when it lies fully inside at least one
// display; otherwise the default size with no position, so a window saved on a
// monitor that is gone does not open off-screen.
func FitBounds(st config.WindowState, displays []Rect, defaultWidth, defaultHeight int) Bounds {
	if st.X != nil && st.Y != nil && st.Width > 0 && st.Height > 0 {
		saved := Rect{X: *st.X, Y: *st.Y, Width: st.Width, Height: st.Height}
		for _, d := range displays {
			if d.Contains(saved) {
				return Bounds{X: config.Ptr(saved.X), Y: config.Ptr(saved.Y), Width: saved.Width, Height: saved.Height}
			}
		}
	}
	return Bounds{Width: defaultWidth, Height: defaultHeight}
}
