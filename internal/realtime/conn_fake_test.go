package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errFakeClosed = errors.New("fake conn closed")

// fakeConn is an in-process Conn. Frames pushed with deliver are read by the
// code under test; frames it writes are collected on out.
type fakeConn struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case raw := <-f.in:
		return 1, raw, nil
	case <-f.closed:
		return 0, nil, errFakeClosed
	}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-f.closed:
		return errFakeClosed
	default:
	}
	select {
	case f.out <- append([]byte(nil), data...):
		return nil
	case <-f.closed:
		return errFakeClosed
	}
}

func (f *fakeConn) SetReadDeadline(time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeConn) deliver(t *testing.T, msg Message) {
	t.Helper()
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	f.in <- raw
}

func (f *fakeConn) next(t *testing.T) Message {
	t.Helper()
	select {
	case raw := <-f.out:
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return Message{}
	}
}

func (f *fakeConn) expectSilence(t *testing.T) {
	t.Helper()
	select {
	case raw := <-f.out:
		t.Fatalf("unexpected frame %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func mustMessage(t *testing.T, msgType MessageType, payload any) Message {
	t.Helper()
	msg, err := NewMessage(msgType, "", payload)
	require.NoError(t, err)
	return msg
}
