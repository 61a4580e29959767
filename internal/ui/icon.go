package ui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

// iconBytes is the tray icon, rendered at startup: a filmstrip-style block
// on a transparent background.
var iconBytes = renderIcon()

func renderIcon() []byte {
	const size = 22
	img := image.NewRGBA(image.Rect(0, 0, size, size))

	body := color.RGBA{R: 230, G: 57, B: 70, A: 255}
	hole := color.RGBA{A: 0}

	for y := 4; y < size-4; y++ {
		for x := 2; x < size-2; x++ {
			img.SetRGBA(x, y, body)
		}
	}
	// Sprocket holes along the top and bottom edges.
	for x := 4; x < size-4; x += 5 {
		for dy := 0; dy < 2; dy++ {
			for dx := 0; dx < 2; dx++ {
				img.SetRGBA(x+dx, 5+dy, hole)
				img.SetRGBA(x+dx, size-7+dy, hole)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}
