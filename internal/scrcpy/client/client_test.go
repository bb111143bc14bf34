package client

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/droidcast/droidcast/internal/scrcpy/controlq"
	"github.com/droidcast/droidcast/internal/scrcpy/protocol"
	"github.com/droidcast/droidcast/internal/scrcpy/receiver"
	"github.com/droidcast/droidcast/internal/scrcpy/session"
)

func TestDisconnectIdempotent(t *testing.T) {
	c := New(nil, nil)
	assert.NoError(t, c.Disconnect())
	assert.NoError(t, c.Disconnect())
	assert.False(t, c.IsConnected())
}

func TestOperationsRequireConnection(t *testing.T) {
	c := New(nil, nil)

	assert.ErrorIs(t, c.Tap(10, 10), ErrNotConnected)
	assert.ErrorIs(t, c.Home(), ErrNotConnected)
	assert.ErrorIs(t, c.InjectText("hi"), ErrNotConnected)
	assert.ErrorIs(t, c.EnableVideo(), ErrNotConnected)
	assert.ErrorIs(t, c.StartVideoRecording("x.h264"), ErrNotConnected)
	assert.ErrorIs(t, c.StartAudioRecording("x.wav", 0, false), ErrNotConnected)

	_, err := c.Screenshot("")
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = c.SetClipboard("text", false)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestStateSnapshotDisconnected(t *testing.T) {
	c := New(nil, nil)
	s := c.StateSnapshot()
	assert.False(t, s.Connected)
	assert.Empty(t, s.DeviceName)
}

func TestClipboardSequenceMonotonic(t *testing.T) {
	c := New(nil, nil)
	first := c.nextClipboardSequence()
	second := c.nextClipboardSequence()
	assert.Equal(t, first+1, second)
}

func TestMemoryClipboard(t *testing.T) {
	m := &MemoryClipboard{}
	text, err := m.Read()
	require.NoError(t, err)
	assert.Empty(t, text)

	require.NoError(t, m.Write("hello"))
	text, err = m.Read()
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestDeviceClipboardSyncsToHost(t *testing.T) {
	host := &MemoryClipboard{}
	c := New(nil, host)

	c.onDeviceClipboard("from device")

	assert.Equal(t, "from device", c.DeviceClipboard())
	text, _ := host.Read()
	assert.Equal(t, "from device", text)
}

// connectedStub wires just enough of a session for the in-band control paths
func connectedStub(c *Client) {
	c.sess = &session.Session{Width: 1080, Height: 2400}
	c.queue = controlq.New()
	c.recv = receiver.New(blockedReader{}, receiver.Callbacks{})
	c.appListCh = make(chan []protocol.AppInfo, 1)
}

type blockedReader struct{}

func (blockedReader) Read([]byte) (int, error) { return 0, io.EOF }

func TestTapEnqueuesDownUp(t *testing.T) {
	c := New(nil, nil)
	connectedStub(c)

	require.NoError(t, c.Tap(540, 1200))
	require.Equal(t, 2, c.queue.Len())

	down, ok := c.queue.Dequeue(time.Second)
	require.True(t, ok)
	up, ok := c.queue.Dequeue(time.Second)
	require.True(t, ok)

	assert.Equal(t, protocol.ControlMsgTypeInjectTouchEvent, down.Type)
	assert.Equal(t, protocol.ControlMsgTypeInjectTouchEvent, up.Type)
	// DOWN carries full pressure, UP none
	assert.Equal(t, byte(protocol.MotionActionDown), down.Data[0])
	assert.Equal(t, byte(protocol.MotionActionUp), up.Data[0])
}

func TestSwipeEnqueuesInterpolatedMoves(t *testing.T) {
	c := New(nil, nil)
	connectedStub(c)

	require.NoError(t, c.Swipe(100, 200, 100, 1800, 50*time.Millisecond))
	// DOWN + 5 MOVEs + UP
	assert.Equal(t, 7, c.queue.Len())
}

func TestSetClipboardSequenceIncrements(t *testing.T) {
	c := New(nil, nil)
	connectedStub(c)

	seq1, err := c.SetClipboard("hello", true)
	require.NoError(t, err)
	seq2, err := c.SetClipboard("world", false)
	require.NoError(t, err)
	assert.Equal(t, seq1+1, seq2)

	m, ok := c.queue.Dequeue(time.Second)
	require.True(t, ok)
	assert.Equal(t, protocol.ControlMsgTypeSetClipboard, m.Type)
	// paste flag sits after the u64 sequence
	assert.Equal(t, byte(1), m.Data[8])
}

func TestListAppsInBand(t *testing.T) {
	c := New(nil, nil)
	connectedStub(c)

	want := []protocol.AppInfo{
		{Name: "Firefox", Package: "org.mozilla.firefox"},
		{Name: "Camera", Package: "com.android.camera", System: true},
	}

	done := make(chan struct{})
	var got []protocol.AppInfo
	var gotErr error
	go func() {
		defer close(done)
		got, gotErr = c.ListApps(2*time.Second, AdbFallback{})
	}()

	// The request must hit the control queue before the reply arrives
	m, ok := c.queue.Dequeue(time.Second)
	require.True(t, ok)
	assert.Equal(t, protocol.ControlMsgTypeGetAppList, m.Type)

	c.onAppList(want)
	<-done
	require.NoError(t, gotErr)
	assert.Equal(t, want, got)
}

func TestListAppsTimeout(t *testing.T) {
	c := New(nil, nil)
	connectedStub(c)

	_, err := c.ListApps(50*time.Millisecond, AdbFallback{})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestSetLazyDecodeWithoutSession(t *testing.T) {
	c := New(nil, nil)
	c.SetLazyDecode(true)
	// No session: the snapshot stays empty, but the flag takes effect on the
	// next connect.
	assert.False(t, c.StateSnapshot().LazyDecode)
	assert.True(t, c.lazyDecode)
}
