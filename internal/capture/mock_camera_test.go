package capture

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestMockCamera_Playback(t *testing.T) {
	frame1 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame1.Close()
	frame2 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame2.Close()

	cam := NewMockCamera([]*gocv.Mat{&frame1, &frame2}, false)
	require.NoError(t, cam.Open())
	defer cam.Close()

	f1, err := cam.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, 640, f1.Width)
	assert.Equal(t, 480, f1.Height)
	assert.Equal(t, int64(100), f1.TimestampMs)
	f1.Close()

	f2, err := cam.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, int64(200), f2.TimestampMs)
	f2.Close()

	_, err = cam.ReadFrame()
	assert.ErrorIs(t, err, ErrNoMoreFrames)
}

func TestMockCamera_Loop(t *testing.T) {
	cam := NewBlankMockCamera(64, 48)
	defer cam.Release()
	cam.Open()
	defer cam.Close()

	var last int64
	for i := 0; i < 5; i++ {
		f, err := cam.ReadFrame()
		require.NoError(t, err, "iteration %d", i)
		assert.Greater(t, f.TimestampMs, last, "looping keeps timestamps increasing")
		last = f.TimestampMs
		f.Close()
	}
}

func TestMockCamera_ScriptedTimestamps(t *testing.T) {
	cam := NewBlankMockCamera(64, 48)
	defer cam.Release()
	cam.SetTimestamps(10, 10, 20)
	cam.Open()

	var got []int64
	for i := 0; i < 4; i++ {
		f, err := cam.ReadFrame()
		require.NoError(t, err)
		got = append(got, f.TimestampMs)
		f.Close()
	}

	assert.Equal(t, []int64{10, 10, 20, 120}, got)
}

func TestMockCamera_Errors(t *testing.T) {
	cam := NewBlankMockCamera(64, 48)
	defer cam.Release()

	_, err := cam.ReadFrame()
	assert.ErrorIs(t, err, ErrCameraNotOpen)

	cam.Open()
	boom := errors.New("usb unplugged")
	cam.SetError(boom)
	_, err = cam.ReadFrame()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, cam.Reads())
}

func TestFrame_Close(t *testing.T) {
	var nilFrame *Frame
	assert.NoError(t, nilFrame.Close())

	mat := gocv.NewMatWithSize(2, 2, gocv.MatTypeCV8UC3)
	f := NewFrame(&mat, 5)
	assert.NoError(t, f.Close())
	assert.Nil(t, f.Mat)
	assert.NoError(t, f.Close())
}
