package teleprompter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prompter/clock"
)

func newController() (*Controller, *clock.Fake) {
	clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return New(clk, nil), clk
}

func TestIdleDoesNotScroll(t *testing.T) {
	c, clk := newController()
	clk.Advance(time.Second)
	assert.Zero(t, c.State().Position)
	assert.Zero(t, clk.Pending(), "idle controller must not keep a ticker")
}

func TestRecordingScrolls(t *testing.T) {
	c, clk := newController()
	c.SetSpeed(2)
	c.SetRecording(true)
	clk.Advance(time.Second)
	assert.InDelta(t, 20, c.State().Position, 1e-9)
	assert.True(t, c.State().Scrolling)
}

func TestPauseFreezesPosition(t *testing.T) {
	c, clk := newController()
	c.SetRecording(true)
	clk.Advance(500 * time.Millisecond)
	c.SetRecording(false)
	pos := c.State().Position
	clk.Advance(2 * time.Second)
	assert.Equal(t, pos, c.State().Position)
	assert.Zero(t, clk.Pending())

	c.SetRecording(true)
	clk.Advance(100 * time.Millisecond)
	assert.InDelta(t, pos+DefaultSpeed, c.State().Position, 1e-9)
}

func TestPauseMidTickKeepsPartialInterval(t *testing.T) {
	c, clk := newController()
	c.SetRecording(true)
	for i := 0; i < 4; i++ {
		clk.Advance(50 * time.Millisecond)
		c.SetRecording(false)
		clk.Advance(time.Second)
		c.SetRecording(true)
	}
	assert.InDelta(t, 2*DefaultSpeed, c.State().Position, 1e-9, "200ms of scrolling is two ticks")
}

func TestRehearsalAndRecordingShareOneTicker(t *testing.T) {
	c, clk := newController()
	require.True(t, c.ToggleRehearse())
	c.SetRecording(true)
	assert.Equal(t, 1, clk.Pending())

	clk.Advance(time.Second)
	assert.InDelta(t, 10*DefaultSpeed, c.State().Position, 1e-9, "both drivers must not double the speed")
}

func TestStopRehearsalKeepsRecordingDriver(t *testing.T) {
	c, clk := newController()
	c.ToggleRehearse()
	c.SetRecording(true)
	c.StopRehearsal()
	assert.False(t, c.State().Rehearsing)
	clk.Advance(200 * time.Millisecond)
	assert.InDelta(t, 2*DefaultSpeed, c.State().Position, 1e-9)
}

func TestToggleRehearseOff(t *testing.T) {
	c, clk := newController()
	c.ToggleRehearse()
	clk.Advance(300 * time.Millisecond)
	assert.False(t, c.ToggleRehearse())
	clk.Advance(time.Second)
	assert.InDelta(t, 3*DefaultSpeed, c.State().Position, 1e-9)
	assert.Zero(t, clk.Pending())
}

func TestResetScroll(t *testing.T) {
	c, clk := newController()
	c.ToggleRehearse()
	clk.Advance(time.Second)
	c.ResetScroll()
	assert.Zero(t, c.State().Position)
	clk.Advance(100 * time.Millisecond)
	assert.InDelta(t, DefaultSpeed, c.State().Position, 1e-9)
}

func TestClamps(t *testing.T) {
	c, _ := newController()
	c.SetSpeed(100)
	assert.Equal(t, MaxSpeed, c.State().Speed)
	c.SetSpeed(0)
	assert.Equal(t, MinSpeed, c.State().Speed)
	c.SetFontSize(2)
	assert.Equal(t, MinFontSize, c.State().FontSize)
	c.SetFontSize(500)
	assert.Equal(t, MaxFontSize, c.State().FontSize)
}

func TestOnScrollCallback(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	var got []float64
	c := New(clk, func(s State) { got = append(got, s.Position) })
	c.SetText("hello")
	c.SetRecording(true)
	clk.Advance(300 * time.Millisecond)
	assert.Equal(t, []float64{1, 2, 3}, got)
	assert.Equal(t, "hello", c.State().Text)

	c.Close()
	clk.Advance(time.Second)
	assert.Len(t, got, 3)
}
