package busdisplay

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jroedel/gluehwodisp/business/busclient/busconversion"
	"github.com/jroedel/gluehwodisp/business/busclient/buskeypad"
)

type memDisplay struct {
	grid     [Rows][Columns]byte
	col, row int
	prints   []string
	failing  bool
}

func newMemDisplay() *memDisplay {
	d := &memDisplay{}
	_ = d.Clear()
	return d
}

func (d *memDisplay) Clear() error {
	if d.failing {
		return errors.New("lcd not responding")
	}
	for r := range d.grid {
		for c := range d.grid[r] {
			d.grid[r][c] = ' '
		}
	}
	d.col, d.row = 0, 0
	return nil
}

func (d *memDisplay) SetCursor(col, row int) error {
	d.col, d.row = col, row
	return nil
}

func (d *memDisplay) Print(text string) error {
	d.prints = append(d.prints, text)
	for i := 0; i < len(text) && d.col < Columns; i++ {
		d.grid[d.row][d.col] = text[i]
		d.col++
	}
	return nil
}

func (d *memDisplay) line(row int) string {
	return string(d.grid[row][:])
}

func TestFormatTemp(t *testing.T) {
	assert.Equal(t, "T1: 65.00 \xdfC", FormatTemp("T1", 65))
	assert.Equal(t, "T2: -127.00 \xdfC", FormatTemp("T2", busconversion.DisconnectedC))
	assert.Len(t, FormatTemp("a-very-long-name", 1234.5), Columns)
}

func TestScreenConsume(t *testing.T) {
	d := newMemDisplay()
	s, err := NewScreen(d)
	require.NoError(t, err)

	err = s.Consume([]busconversion.Reading{
		{Sensor: "T1", Celsius: 65.0},
		{Sensor: "T2", Celsius: 58.25},
	})
	require.NoError(t, err)
	assert.Equal(t, "T1: 65.00 \xdfC    ", d.line(0))
	assert.Equal(t, "T2: 58.25 \xdfC    ", d.line(1))
}

func TestScreenConsumeError(t *testing.T) {
	d := newMemDisplay()
	d.failing = true
	s, err := NewScreen(d)
	require.NoError(t, err)

	assert.Error(t, s.Consume([]busconversion.Reading{{Sensor: "T1", Celsius: 65.0}}))
}

type stepClock struct {
	t    time.Time
	step time.Duration
}

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

type fixedButton struct {
	b   buskeypad.Button
	err error
}

func (f fixedButton) ReadButton(context.Context) (buskeypad.Button, error) {
	return f.b, f.err
}

func newTestBoot(t *testing.T, d Display, buttons ButtonReader) *BootMessage {
	t.Helper()
	bm, err := NewBootMessage(d, buttons, log.New(os.Stdout, "[busdisplay_test] ", 0))
	require.NoError(t, err)
	clock := &stepClock{t: time.Unix(0, 0), step: 500 * time.Millisecond}
	bm.now = clock.now
	bm.Refresh = 0
	return bm
}

func TestBootMessageCountdown(t *testing.T) {
	d := newMemDisplay()
	bm := newTestBoot(t, d, fixedButton{b: buskeypad.None})

	skipped, err := bm.Show(context.Background())
	require.NoError(t, err)
	assert.False(t, skipped)

	assert.Equal(t, []string{
		DefaultBootText, "3",
		DefaultBootText, "2",
		DefaultBootText, "1",
	}, d.prints)
	assert.Equal(t, DefaultBootText, d.line(0))
	assert.Equal(t, "       1        ", d.line(1))
}

func TestBootMessageSkip(t *testing.T) {
	d := newMemDisplay()
	bm := newTestBoot(t, d, fixedButton{b: buskeypad.Right})

	skipped, err := bm.Show(context.Background())
	require.NoError(t, err)
	assert.True(t, skipped)
	assert.Empty(t, d.prints)
}

func TestBootMessageWithoutKeypad(t *testing.T) {
	d := newMemDisplay()
	bm := newTestBoot(t, d, nil)

	skipped, err := bm.Show(context.Background())
	require.NoError(t, err)
	assert.False(t, skipped)
	assert.Len(t, d.prints, 6)
}

func TestBootMessageKeypadErrorIsTolerated(t *testing.T) {
	d := newMemDisplay()
	bm := newTestBoot(t, d, fixedButton{b: buskeypad.None, err: buskeypad.ErrUnstable})

	skipped, err := bm.Show(context.Background())
	require.NoError(t, err)
	assert.False(t, skipped)
	assert.Len(t, d.prints, 6)
}

func TestBootMessageCanceled(t *testing.T) {
	d := newMemDisplay()
	bm := newTestBoot(t, d, nil)
	bm.Refresh = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := bm.Show(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRemainingSeconds(t *testing.T) {
	assert.Equal(t, 3, remainingSeconds(2999*time.Millisecond))
	assert.Equal(t, 1, remainingSeconds(0))
	assert.Equal(t, 1, remainingSeconds(-time.Second))
}
