package render

import (
	"balltrack/internal/pipeline"

	"gocv.io/x/gocv"
)

const keyEsc = 27

// Window shows annotated frames in a highgui window. Closing is the
// caller's job. Pressing ESC or q in the window stops the loop.
type Window struct {
	win   *gocv.Window
	opts  Options
	delay int
}

// NewWindow opens a display window. delay is the WaitKey timeout in ms.
func NewWindow(title string, opts Options, delay int) *Window {
	if delay < 1 {
		delay = 1
	}
	return &Window{win: gocv.NewWindow(title), opts: opts, delay: delay}
}

// Show implements pipeline.Sink.
func (w *Window) Show(img gocv.Mat, res pipeline.Result) error {
	out := Overlay(img, res, w.opts)
	defer out.Close()

	w.win.IMShow(out)
	if IsStopKey(w.win.WaitKey(w.delay)) {
		return pipeline.ErrStop
	}
	return nil
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.win.Close()
}

// IsStopKey reports whether a WaitKey code asks to quit.
func IsStopKey(key int) bool {
	return key == keyEsc || key == 'q' || key == 'Q'
}

// Discard is a sink that drops every frame, for headless runs.
var Discard pipeline.Sink = pipeline.SinkFunc(func(gocv.Mat, pipeline.Result) error {
	return nil
})
