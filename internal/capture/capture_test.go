package capture

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	mu        sync.Mutex
	started   []string
	stopped   int
	released  int
	snapshot  []byte
	clip      Clip
	startErr  error
	stopErr   error
}

func (h *fakeHandle) StartRecording(mimeType string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.startErr != nil {
		return h.startErr
	}
	h.started = append(h.started, mimeType)
	return nil
}

func (h *fakeHandle) StopRecording(context.Context) (Clip, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped++
	return h.clip, h.stopErr
}

func (h *fakeHandle) Snapshot(context.Context) ([]byte, error) {
	if h.snapshot == nil {
		return nil, errors.New("no snapshot")
	}
	return h.snapshot, nil
}

func (h *fakeHandle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.released++
}

type fakeEngine struct {
	supported map[string]bool
	handle    *fakeHandle
	openErr   error
	opens     int
}

func (e *fakeEngine) Supports(mimeType string) bool {
	return e.supported[mimeType]
}

func (e *fakeEngine) Open(context.Context, Constraints) (Handle, error) {
	e.opens++
	if e.openErr != nil {
		return nil, e.openErr
	}
	return e.handle, nil
}

func TestAcquireNegotiatesFirstSupportedType(t *testing.T) {
	engine := &fakeEngine{
		supported: map[string]bool{
			"video/webm;codecs=vp8": true,
			"video/mp4;codecs=h264": true,
		},
		handle: &fakeHandle{},
	}
	controller := NewController(engine, nil, nil)

	require.NoError(t, controller.Acquire(context.Background(), Constraints{}))
	assert.Equal(t, "video/webm;codecs=vp8", controller.MimeType())
}

func TestAcquireFallsBackWhenNothingSupported(t *testing.T) {
	engine := &fakeEngine{handle: &fakeHandle{}}
	controller := NewController(engine, nil, nil)

	require.NoError(t, controller.Acquire(context.Background(), Constraints{}))
	assert.Equal(t, FallbackMimeType, controller.MimeType())
}

func TestAcquireWrapsEngineFailure(t *testing.T) {
	engine := &fakeEngine{openErr: errors.New("device busy")}
	controller := NewController(engine, nil, nil)

	err := controller.Acquire(context.Background(), Constraints{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAcquire)
}

func TestAcquireTwiceFails(t *testing.T) {
	engine := &fakeEngine{handle: &fakeHandle{}}
	controller := NewController(engine, nil, nil)

	require.NoError(t, controller.Acquire(context.Background(), Constraints{}))
	require.Error(t, controller.Acquire(context.Background(), Constraints{}))
	assert.Equal(t, 1, engine.opens)
}

func TestStartRequiresAcquire(t *testing.T) {
	controller := NewController(&fakeEngine{}, nil, nil)
	assert.ErrorIs(t, controller.Start(), ErrNotAcquired)
}

func TestStartWhileRecordingFails(t *testing.T) {
	handle := &fakeHandle{}
	engine := &fakeEngine{handle: handle}
	controller := NewController(engine, nil, nil)

	require.NoError(t, controller.Acquire(context.Background(), Constraints{}))
	require.NoError(t, controller.Start())
	assert.ErrorIs(t, controller.Start(), ErrAlreadyRecording)
	assert.Len(t, handle.started, 1)
}

func TestStopTagsClipWithNegotiatedType(t *testing.T) {
	handle := &fakeHandle{clip: Clip{Data: []byte("webm-bytes")}}
	engine := &fakeEngine{
		supported: map[string]bool{"video/webm;codecs=vp9": true},
		handle:    handle,
	}
	controller := NewController(engine, nil, nil)

	require.NoError(t, controller.Acquire(context.Background(), Constraints{}))
	require.NoError(t, controller.Start())

	clip, err := controller.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("webm-bytes"), clip.Data)
	assert.Equal(t, "video/webm;codecs=vp9", clip.MimeType)
}

func TestStopWithoutRecordingFails(t *testing.T) {
	engine := &fakeEngine{handle: &fakeHandle{}}
	controller := NewController(engine, nil, nil)

	require.NoError(t, controller.Acquire(context.Background(), Constraints{}))
	_, err := controller.Stop(context.Background())
	assert.ErrorIs(t, err, ErrNotRecording)
}

func TestRecordAgainAfterStop(t *testing.T) {
	handle := &fakeHandle{}
	engine := &fakeEngine{handle: handle}
	controller := NewController(engine, nil, nil)

	require.NoError(t, controller.Acquire(context.Background(), Constraints{}))
	require.NoError(t, controller.Start())
	_, err := controller.Stop(context.Background())
	require.NoError(t, err)
	require.NoError(t, controller.Start())
	assert.Len(t, handle.started, 2)
}

func TestReleaseIsIdempotent(t *testing.T) {
	handle := &fakeHandle{}
	engine := &fakeEngine{handle: handle}
	controller := NewController(engine, nil, nil)

	require.NoError(t, controller.Acquire(context.Background(), Constraints{}))
	controller.Release()
	controller.Release()
	assert.Equal(t, 1, handle.released)

	assert.ErrorIs(t, controller.Start(), ErrNotAcquired)
}

func TestSnapshotRequiresAcquire(t *testing.T) {
	controller := NewController(&fakeEngine{}, nil, nil)
	_, err := controller.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrNotAcquired)
}

func TestSnapshotReturnsCachedFrame(t *testing.T) {
	handle := &fakeHandle{snapshot: []byte{0xff, 0xd8, 0xff}}
	engine := &fakeEngine{handle: handle}
	controller := NewController(engine, nil, nil)

	require.NoError(t, controller.Acquire(context.Background(), Constraints{}))
	frame, err := controller.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, frame)
}
