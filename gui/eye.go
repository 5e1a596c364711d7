//go:build gui

package gui

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"talkbox/screen"
)

func rgb(r, g, b uint8) color.Color { return color.RGBA{r, g, b, 255} }

// Palettes indexed like screen.EyePixels, approximating the terminal's
// ANSI 256 colours.
var (
	rim   = rgb(48, 48, 48)
	white = rgb(255, 255, 255)
	gray  = rgb(180, 180, 180)

	colorsListen = [screen.EyePalette]color.Color{
		color.Black,
		rgb(255, 255, 0), rgb(255, 215, 0), rgb(255, 175, 0), rgb(255, 135, 0),
		rgb(255, 0, 0), rgb(215, 0, 0), rgb(175, 0, 0), rgb(135, 0, 0), rgb(95, 0, 0),
		rim, rim, rim, rim,
		white, gray,
	}
	colorsIdle = [screen.EyePalette]color.Color{
		color.Black,
		white, rgb(255, 215, 215), rgb(255, 175, 175), rgb(255, 135, 135),
		rgb(215, 0, 0), rgb(175, 0, 0), rgb(135, 0, 0), rgb(95, 0, 0),
		rim, rim, rim, rim, rim,
		white, gray,
	}
)

// EyeWidget draws the animated eye as a grid of rectangles, two pixels per
// cell blended vertically.
type EyeWidget struct {
	widget.BaseWidget
	mu        sync.Mutex
	frame     int
	listening bool
	stopOnce  sync.Once
	stopCh    chan struct{}
}

func NewEyeWidget() *EyeWidget {
	e := &EyeWidget{stopCh: make(chan struct{})}
	e.ExtendBaseWidget(e)
	go e.animate()
	return e
}

func (e *EyeWidget) SetListening(on bool) {
	e.mu.Lock()
	e.listening = on
	e.mu.Unlock()
}

func (e *EyeWidget) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

func (e *EyeWidget) animate() {
	ticker := time.NewTicker(33 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.mu.Lock()
			e.frame++
			e.mu.Unlock()
			fyne.Do(e.Refresh)
		}
	}
}

func (e *EyeWidget) MinSize() fyne.Size {
	return fyne.NewSize(float32(screen.EyeWidth*8), float32(screen.EyeHeight*16))
}

func (e *EyeWidget) CreateRenderer() fyne.WidgetRenderer {
	r := &eyeRenderer{eye: e}
	r.rects = make([][]*canvas.Rectangle, screen.EyeHeight)
	for y := range r.rects {
		r.rects[y] = make([]*canvas.Rectangle, screen.EyeWidth)
		for x := range r.rects[y] {
			r.rects[y][x] = canvas.NewRectangle(color.Black)
		}
	}
	return r
}

type eyeRenderer struct {
	eye   *EyeWidget
	rects [][]*canvas.Rectangle
}

func (r *eyeRenderer) Layout(size fyne.Size) {
	cellW := size.Width / float32(screen.EyeWidth)
	cellH := size.Height / float32(screen.EyeHeight)
	for y, row := range r.rects {
		for x, rect := range row {
			rect.Move(fyne.NewPos(float32(x)*cellW, float32(y)*cellH))
			rect.Resize(fyne.NewSize(cellW, cellH))
		}
	}
}

func (r *eyeRenderer) MinSize() fyne.Size {
	return r.eye.MinSize()
}

func (r *eyeRenderer) Refresh() {
	r.eye.mu.Lock()
	frame := r.eye.frame
	listening := r.eye.listening
	r.eye.mu.Unlock()

	pixels := screen.EyePixels(frame, listening)
	colors := colorsIdle
	if listening {
		colors = colorsListen
	}
	for cy, row := range r.rects {
		for cx, rect := range row {
			rect.FillColor = blendColors(colors[pixels[cy*2][cx]], colors[pixels[cy*2+1][cx]])
			rect.Refresh()
		}
	}
}

func blendColors(top, bot color.Color) color.Color {
	tr, tg, tb, _ := top.RGBA()
	br, bg, bb, _ := bot.RGBA()
	return color.RGBA{
		R: uint8((tr + br) / 512),
		G: uint8((tg + bg) / 512),
		B: uint8((tb + bb) / 512),
		A: 255,
	}
}

func (r *eyeRenderer) Objects() []fyne.CanvasObject {
	objs := make([]fyne.CanvasObject, 0, screen.EyeWidth*screen.EyeHeight)
	for _, row := range r.rects {
		for _, rect := range row {
			objs = append(objs, rect)
		}
	}
	return objs
}

func (r *eyeRenderer) Destroy() {
	r.eye.Stop()
}
