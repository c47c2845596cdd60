package api

// BidiStream is one logical request/response exchange over a transport.
// Decode returns io.EOF once the remote side has half-closed cleanly, or the
// remote error (usually a *Status) when it closed with one.
type BidiStream interface {
	Encode(m any) error
	Decode(m any) (err error)
	CloseSend(error) error
	Close(error)
	EndOfStreamError() error
	// Done is closed once the stream has been closed locally or reset by the peer.
	Done() <-chan struct{}
}
