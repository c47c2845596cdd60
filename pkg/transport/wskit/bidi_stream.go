package wskit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/fgrzl/resourcekit/pkg/api"
	"github.com/google/uuid"
)

const recvBuffer = 64

var ErrStreamClosed = errors.New("wskit: stream closed")

// MuxerBidiStream is one logical channel of a WebSocketMuxer. Frames are
// delivered to Decode in the order the peer sent them; a terminal frame ends
// the stream with io.EOF or the peer's Status.
type MuxerBidiStream struct {
	id      uuid.UUID
	send    func(*MuxerMsg) error
	cleanup func()

	recv     chan *MuxerMsg
	released chan struct{}
	done     chan struct{}

	releaseOnce sync.Once
	doneOnce    sync.Once

	mu        sync.Mutex
	terminal  error
	sentEOS   bool
	stopWatch func() bool
}

func newMuxerBidiStream(id uuid.UUID, send func(*MuxerMsg) error, cleanup func()) *MuxerBidiStream {
	return &MuxerBidiStream{
		id:       id,
		send:     send,
		cleanup:  cleanup,
		recv:     make(chan *MuxerMsg, recvBuffer),
		released: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// ID returns the channel id.
func (s *MuxerBidiStream) ID() uuid.UUID { return s.id }

func (s *MuxerBidiStream) Encode(m any) error {
	s.mu.Lock()
	closed := s.sentEOS
	s.mu.Unlock()
	if closed || s.isReleased() {
		return ErrStreamClosed
	}

	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.send(&MuxerMsg{ChannelID: s.id, Payload: payload})
}

func (s *MuxerBidiStream) Decode(m any) error {
	if err := s.terminalErr(); err != nil {
		return err
	}

	select {
	case msg := <-s.recv:
		if msg.EOS {
			err := io.EOF
			if msg.Status != nil {
				err = msg.Status
			}
			s.setTerminal(err)
			return err
		}
		return json.Unmarshal(msg.Payload, m)
	case <-s.released:
		return s.terminalErr()
	}
}

// CloseSend half-closes the stream. The peer reads err, or io.EOF when err
// is nil, after every frame already sent.
func (s *MuxerBidiStream) CloseSend(err error) error {
	s.mu.Lock()
	if s.sentEOS {
		s.mu.Unlock()
		return nil
	}
	s.sentEOS = true
	s.mu.Unlock()

	if s.isReleased() {
		return ErrStreamClosed
	}
	return s.send(&MuxerMsg{ChannelID: s.id, EOS: true, Status: api.FromError(err)})
}

// Close ends the stream on both sides. The peer is sent err unless a
// terminal frame was already sent.
func (s *MuxerBidiStream) Close(err error) {
	_ = s.CloseSend(err)
	if err == nil {
		err = io.EOF
	}
	s.release(err)
}

func (s *MuxerBidiStream) EndOfStreamError() error {
	return io.EOF
}

// Done is closed once either side has ended the stream.
func (s *MuxerBidiStream) Done() <-chan struct{} { return s.done }

// watch closes the stream with context.Canceled when ctx is done.
func (s *MuxerBidiStream) watch(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() { s.Close(context.Canceled) })
	s.mu.Lock()
	s.stopWatch = stop
	s.mu.Unlock()
}

// deliver hands a frame from the read loop to the stream without blocking.
// A stream whose receive buffer is full is failed with Unavailable and the
// peer is told to stop sending.
func (s *MuxerBidiStream) deliver(msg *MuxerMsg) bool {
	if s.isReleased() {
		return false
	}
	select {
	case s.recv <- msg:
		if msg.EOS {
			s.markDone()
		}
		return true
	default:
		s.overflow(api.Errorf(api.Unavailable, "receiver too slow"))
		return false
	}
}

// overflow releases the stream at once and sends the terminal frame from
// its own goroutine so the read loop never waits on a write.
func (s *MuxerBidiStream) overflow(err error) {
	s.mu.Lock()
	notify := !s.sentEOS
	s.sentEOS = true
	s.mu.Unlock()

	s.release(err)
	if notify {
		go func() {
			_ = s.send(&MuxerMsg{ChannelID: s.id, EOS: true, Status: api.FromError(err)})
		}()
	}
}

// fail ends the stream locally without notifying the peer.
func (s *MuxerBidiStream) fail(err error) {
	s.mu.Lock()
	s.sentEOS = true
	s.mu.Unlock()
	s.release(err)
}

func (s *MuxerBidiStream) release(err error) {
	s.releaseOnce.Do(func() {
		s.mu.Lock()
		if s.terminal == nil {
			s.terminal = err
		}
		stop := s.stopWatch
		s.mu.Unlock()

		if stop != nil {
			stop()
		}
		close(s.released)
		s.markDone()
		s.cleanup()
	})
}

func (s *MuxerBidiStream) markDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *MuxerBidiStream) isReleased() bool {
	select {
	case <-s.released:
		return true
	default:
		return false
	}
}

func (s *MuxerBidiStream) setTerminal(err error) {
	s.mu.Lock()
	if s.terminal == nil {
		s.terminal = err
	}
	s.mu.Unlock()
}

func (s *MuxerBidiStream) terminalErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminal
}
