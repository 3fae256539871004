// Package ledstrip buffers the colours of an addressable WS2812B strip and
// flushes them to the hardware on Show
package ledstrip

import (
	"errors"
	"fmt"
	"io"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
)

type Color uint32

func RGB(r, g, b uint8) Color {
	return Color(uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

func (c Color) RGB() (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// Strip never clears pixels implicitly; a pixel keeps its colour until it
// is set again or Clear is called
type Strip struct {
	pixels     []Color
	brightness int
	out        io.Writer
	buf        []byte
}

// New writes 3 bytes (R, G, B) per pixel to out on every Show. brightness
// scales every channel, 255 is full.
func New(out io.Writer, numPixels int, brightness int) (*Strip, error) {
	if out == nil {
		return nil, errors.New("ledstrip: writer is required")
	}
	if numPixels <= 0 {
		return nil, fmt.Errorf("ledstrip: invalid pixel count %d", numPixels)
	}
	if brightness < 0 || brightness > 255 {
		return nil, fmt.Errorf("ledstrip: brightness must be 0..255, got %d", brightness)
	}
	return &Strip{
		pixels:     make([]Color, numPixels),
		brightness: brightness,
		out:        out,
		buf:        make([]byte, numPixels*3),
	}, nil
}

// SetPixelColor ignores indexes outside the strip
func (s *Strip) SetPixelColor(index int, c Color) {
	if index < 0 || index >= len(s.pixels) {
		return
	}
	s.pixels[index] = c
}

func (s *Strip) Pixel(index int) Color {
	return s.pixels[index]
}

func (s *Strip) Clear() {
	clear(s.pixels)
}

func (s *Strip) Len() int {
	return len(s.pixels)
}

func (s *Strip) Show() error {
	for i, c := range s.pixels {
		r, g, b := c.RGB()
		s.buf[i*3] = s.scale(r)
		s.buf[i*3+1] = s.scale(g)
		s.buf[i*3+2] = s.scale(b)
	}
	if _, err := s.out.Write(s.buf); err != nil {
		return fmt.Errorf("ledstrip: write: %w", err)
	}
	return nil
}

func (s *Strip) scale(v uint8) uint8 {
	return uint8(int(v) * s.brightness / 255)
}

// stripDevice closes both the nrzled device and the SPI port under it
type stripDevice struct {
	dev  *nrzled.Dev
	port io.Closer
}

func (d *stripDevice) Write(p []byte) (int, error) {
	return d.dev.Write(p)
}

func (d *stripDevice) Close() error {
	return errors.Join(d.dev.Halt(), d.port.Close())
}

// OpenSPI drives a WS2812B strip from the MOSI line of an SPI port. The
// periph host drivers must be initialized first. The returned closer blanks
// the strip and releases the port.
func OpenSPI(portName string, numPixels int, brightness int) (*Strip, io.Closer, error) {
	port, err := spireg.Open(portName)
	if err != nil {
		return nil, nil, fmt.Errorf("ledstrip: open spi port %q: %w", portName, err)
	}
	opts := nrzled.DefaultOpts
	opts.NumPixels = numPixels
	opts.Channels = 3
	opts.Freq = 800 * physic.KiloHertz
	dev, err := nrzled.NewSPI(port, &opts)
	if err != nil {
		_ = port.Close()
		return nil, nil, fmt.Errorf("ledstrip: nrzled: %w", err)
	}
	sd := &stripDevice{dev: dev, port: port}
	strip, err := New(sd, numPixels, brightness)
	if err != nil {
		_ = sd.Close()
		return nil, nil, err
	}
	return strip, sd, nil
}
