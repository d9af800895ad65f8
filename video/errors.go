package video

import "errors"

var (
	// ErrScreenNotCompiled is returned when the binary was built without -tags=screen.
	ErrScreenNotCompiled = errors.New("screen support not compiled in (build with -tags=screen)")

	// ErrUnsupportedDepth is returned for framebuffers that are not RGB565.
	ErrUnsupportedDepth = errors.New("framebuffer must be 16 bits per pixel")
)
