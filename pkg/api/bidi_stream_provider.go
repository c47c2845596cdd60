package api

import "context"

type BidiStreamProvider interface {
	// CallStream initiates a bidirectional stream to a remote handler.
	// The request message is sent as the first frame of the stream.
	CallStream(context.Context, Routeable) (BidiStream, error)
}
