package qrcode

import (
	"fmt"
	"strings"
)

const gridSize = 25

// StringHash is the 31-multiplier string hash the SVG pattern is keyed on
func StringHash(s string) uint32 {
	var h uint32
	for _, r := range s {
		h = h*31 + uint32(r)
	}
	return h
}

// RenderSVG draws a QR-looking pattern for data. The same data always
// yields the same image, but the image is not decodable.
func RenderSVG(data string, size int) string {
	if size <= 0 {
		size = 200
	}

	var cells [gridSize][gridSize]bool
	state := StringHash(data)
	if state == 0 {
		state = 0x9e3779b9
	}
	for y := 0; y < gridSize; y++ {
		for x := 0; x < gridSize; x++ {
			// xorshift32
			state ^= state << 13
			state ^= state >> 17
			state ^= state << 5
			cells[y][x] = state&1 == 1
		}
	}

	for _, origin := range [][2]int{{0, 0}, {gridSize - 7, 0}, {0, gridSize - 7}} {
		drawFinder(&cells, origin[0], origin[1])
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" shape-rendering="crispEdges">`,
		size, size, gridSize+2, gridSize+2)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="#ffffff"/>`, gridSize+2, gridSize+2)
	b.WriteString(`<path fill="#000000" d="`)
	for y := 0; y < gridSize; y++ {
		for x := 0; x < gridSize; x++ {
			if cells[y][x] {
				fmt.Fprintf(&b, "M%d %dh1v1h-1z", x+1, y+1)
			}
		}
	}
	b.WriteString(`"/></svg>`)
	return b.String()
}

// drawFinder paints a 7x7 position marker with its top-left at (ox, oy)
// and clears the one-module separator around it.
func drawFinder(cells *[gridSize][gridSize]bool, ox, oy int) {
	for dy := -1; dy <= 7; dy++ {
		for dx := -1; dx <= 7; dx++ {
			x, y := ox+dx, oy+dy
			if x < 0 || y < 0 || x >= gridSize || y >= gridSize {
				continue
			}
			ring := dx == 0 || dx == 6 || dy == 0 || dy == 6
			core := dx >= 2 && dx <= 4 && dy >= 2 && dy <= 4
			inside := dx >= 0 && dx <= 6 && dy >= 0 && dy <= 6
			cells[y][x] = inside && (ring || core)
		}
	}
}
