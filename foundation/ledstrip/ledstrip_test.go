package ledstrip

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShowWritesScaledRGB(t *testing.T) {
	var out bytes.Buffer
	s, err := New(&out, 3, 128)
	require.NoError(t, err)

	s.SetPixelColor(0, RGB(255, 0, 0))
	s.SetPixelColor(2, RGB(0, 0, 255))
	s.SetPixelColor(7, RGB(255, 255, 255)) //out of range, ignored
	require.NoError(t, s.Show())

	assert.Equal(t, []byte{128, 0, 0, 0, 0, 0, 0, 0, 128}, out.Bytes())
}

func TestPixelsPersistUntilCleared(t *testing.T) {
	var out bytes.Buffer
	s, err := New(&out, 2, 255)
	require.NoError(t, err)

	s.SetPixelColor(1, RGB(0, 255, 0))
	require.NoError(t, s.Show())
	require.NoError(t, s.Show())
	assert.Equal(t, RGB(0, 255, 0), s.Pixel(1))
	assert.Equal(t, []byte{0, 0, 0, 0, 255, 0, 0, 0, 0, 0, 255, 0}, out.Bytes())

	s.Clear()
	assert.Equal(t, Color(0), s.Pixel(1))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("spi: transfer failed")
}

func TestShowError(t *testing.T) {
	s, err := New(failingWriter{}, 7, 255)
	require.NoError(t, err)
	assert.Error(t, s.Show())
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, 7, 128)
	assert.Error(t, err)
	_, err = New(&bytes.Buffer{}, 0, 128)
	assert.Error(t, err)
	_, err = New(&bytes.Buffer{}, 7, 300)
	assert.Error(t, err)
}
