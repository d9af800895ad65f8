//go:build screen

package video

import (
	"encoding/binary"
	"fmt"
	"image"
	"os"

	"github.com/d21d3q/framebuffer"
	"github.com/fogleman/gg"
	"github.com/rs/zerolog/log"
)

const fontPath = "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf"

// ScreenSupported returns whether screen support is compiled in.
func ScreenSupported() bool {
	return true
}

// Display renders the indicator state full-screen on a 16bpp framebuffer.
type Display struct {
	dc              *gg.Context
	pixBuffer       []byte
	backBuffer      []byte
	rgbaImage       *image.RGBA
	width           int
	height          int
	lineLengthBytes int
	initialized     bool
}

// New opens /dev/fb0.
func New() (*Display, error) {
	v := &Display{}
	if err := v.init(); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *Display) init() error {
	fbLowLevel, err := framebuffer.OpenFrameBuffer("/dev/fb0", os.O_RDWR)
	if err != nil {
		return fmt.Errorf("open framebuffer: %w", err)
	}

	varInfo, err := fbLowLevel.VarScreenInfo()
	if err != nil {
		return fmt.Errorf("get variable screen info: %w", err)
	}
	fixedInfo, err := fbLowLevel.FixScreenInfo()
	if err != nil {
		return fmt.Errorf("get fixed screen info: %w", err)
	}

	if varInfo.BitsPerPixel != 16 {
		return fmt.Errorf("%w: got %d", ErrUnsupportedDepth, varInfo.BitsPerPixel)
	}

	v.pixBuffer, err = fbLowLevel.Pixels()
	if err != nil {
		return fmt.Errorf("get pixel data: %w", err)
	}

	v.width = int(varInfo.XRes)
	v.height = int(varInfo.YRes)
	v.lineLengthBytes = int(fixedInfo.LineLength)
	v.backBuffer = make([]byte, v.height*v.lineLengthBytes)

	log.Debug().Int("width", v.width).Int("height", v.height).
		Int("bpp", int(varInfo.BitsPerPixel)).Msg("Framebuffer opened")

	v.rgbaImage = image.NewRGBA(image.Rect(0, 0, v.width, v.height))
	v.dc = gg.NewContextForRGBA(v.rgbaImage)
	v.initialized = true

	v.clear()
	return nil
}

func (v *Display) clear() {
	for i := range v.pixBuffer {
		v.pixBuffer[i] = 0
	}
}

func (v *Display) update() {
	for y := 0; y < v.height; y++ {
		for x := 0; x < v.width; x++ {
			r, g, b, _ := v.rgbaImage.At(x, y).RGBA()
			r5 := uint16(r >> (16 - 5))
			g6 := uint16(g >> (16 - 6))
			b5 := uint16(b >> (16 - 5))
			pixel16 := (r5 << 11) | (g6 << 5) | b5
			fbIdx := (y * v.lineLengthBytes) + (x * 2)
			if fbIdx+1 < len(v.backBuffer) {
				binary.LittleEndian.PutUint16(v.backBuffer[fbIdx:], pixel16)
			}
		}
	}
	copy(v.pixBuffer, v.backBuffer)
}

func (v *Display) fill(r, g, b float64, text string) {
	if !v.initialized {
		return
	}
	v.dc.SetRGB(r, g, b)
	v.dc.DrawRectangle(0, 0, float64(v.width), float64(v.height))
	v.dc.Fill()

	if err := v.dc.LoadFontFace(fontPath, 64); err != nil {
		log.Warn().Err(err).Msg("Video: load font")
	}
	v.dc.SetRGB(1, 1, 1)
	v.dc.DrawStringAnchored(text, float64(v.width/2), float64(v.height/2), 0.5, 0.5)
	v.update()
}

// Idle shows the ready screen.
func (v *Display) Idle() {
	v.fill(0, 0, 0.3, "Ready")
}

// Granted shows the tag-allowed screen.
func (v *Display) Granted() {
	v.fill(0, 0.7, 0, "Tag Accepted")
}

// Shutdown blanks the screen.
func (v *Display) Shutdown() {
	if !v.initialized {
		return
	}
	v.clear()
}

// Release blanks the screen and stops drawing.
func (v *Display) Release() error {
	if v.initialized {
		v.clear()
	}
	v.initialized = false
	return nil
}
