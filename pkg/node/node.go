package node

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/fgrzl/enumerators"
	"github.com/fgrzl/json/polymorphic"
	"github.com/fgrzl/resourcekit/pkg/api"
	"github.com/fgrzl/resourcekit/pkg/storage"
	"github.com/fgrzl/timestamp"
)

type Node interface {
	Handle(context.Context, api.BidiStream)
	Close()
}

type Option func(*defaultNode)

func WithMetrics(m *Metrics) Option {
	return func(n *defaultNode) {
		n.metrics = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(n *defaultNode) {
		n.logger = l
	}
}

// WithSubscriptionBuffer bounds how many changes a pull stream may lag
// behind before it is closed with Unavailable.
func WithSubscriptionBuffer(size int) Option {
	return func(n *defaultNode) {
		n.buffer = size
	}
}

func NewNode(tenant string, store storage.Store, opts ...Option) Node {
	n := &defaultNode{
		tenant: tenant,
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.With(slog.String("tenant", tenant))
	n.traits = NewHub[*api.TraitValue](n.buffer)
	n.collections = NewHub[*api.CollectionChange](n.buffer)
	return n
}

type defaultNode struct {
	tenant      string
	store       storage.Store
	traits      *Hub[*api.TraitValue]
	collections *Hub[*api.CollectionChange]
	metrics     *Metrics
	logger      *slog.Logger
	buffer      int

	// writeMu orders each store write with its publish. Pulls hold it for
	// reading while they subscribe and read the current value.
	writeMu sync.RWMutex
}

func (n *defaultNode) Close() {
	n.store.Close()
}

func (n *defaultNode) Handle(ctx context.Context, bidi api.BidiStream) {

	defer func() {
		if r := recover(); r != nil {
			n.logger.ErrorContext(ctx, "node: handler panic", slog.Any("panic", r))
			bidi.Close(api.Errorf(api.Internal, "panic: %v", r))
		}
	}()

	envelope := &polymorphic.Envelope{}
	if err := bidi.Decode(envelope); err != nil {
		bidi.Close(api.Errorf(api.InvalidArgument, "decode request: %v", err))
		return
	}

	n.metrics.request(envelope.Content)
	n.logger.DebugContext(ctx, "node: request",
		append(requestAttrs(ctx), slog.String("kind", api.KindOf(envelope.Content)))...)

	switch args := envelope.Content.(type) {
	case *api.PullTrait:
		n.handlePullTrait(ctx, args, bidi)
	case *api.PullCollection:
		n.handlePullCollection(ctx, args, bidi)
	case *api.ListCollection:
		n.handleListCollection(ctx, args, bidi)
	case *api.GetCollections:
		n.handleGetCollections(ctx, args, bidi)
	case *api.GetTrait:
		n.handleGetTrait(ctx, args, bidi)
	case *api.UpdateTrait:
		n.handleUpdateTrait(ctx, args, bidi)
	case *api.UpsertItem:
		n.handleUpsertItem(ctx, args, bidi)
	case *api.DeleteItem:
		n.handleDeleteItem(ctx, args, bidi)
	default:
		bidi.Close(api.Errorf(api.InvalidArgument, "invalid request msg type: %T", envelope.Content))
	}
}

func (n *defaultNode) handlePullTrait(ctx context.Context, args *api.PullTrait, bidi api.BidiStream) {
	if args.Device == "" || args.Trait == "" {
		bidi.CloseSend(api.Errorf(api.InvalidArgument, "device and trait are required"))
		return
	}

	n.writeMu.RLock()
	sub := n.traits.Subscribe(TraitTopic(args.Device, args.Trait))
	current, err := n.store.GetTrait(ctx, args.Device, args.Trait)
	n.writeMu.RUnlock()
	defer sub.Close()
	defer n.metrics.pullOpened()()

	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		bidi.CloseSend(toStatus(err))
		return
	default:
		if err := bidi.Encode(current); err != nil {
			bidi.Close(err)
			return
		}
	}

	for {
		select {
		case value := <-sub.C:
			if err := bidi.Encode(value); err != nil {
				bidi.Close(err)
				return
			}
		case <-sub.Overflow():
			n.logger.WarnContext(ctx, "node: trait subscriber fell behind", slog.String("device", args.Device), slog.String("trait", args.Trait))
			bidi.CloseSend(api.Errorf(api.Unavailable, "subscriber too slow"))
			return
		case <-bidi.Done():
			return
		case <-ctx.Done():
			bidi.CloseSend(ctx.Err())
			return
		}
	}
}

func (n *defaultNode) handlePullCollection(ctx context.Context, args *api.PullCollection, bidi api.BidiStream) {
	if args.Collection == "" {
		bidi.CloseSend(api.Errorf(api.InvalidArgument, "collection is required"))
		return
	}

	sub := n.collections.Subscribe(CollectionTopic(args.Collection))
	defer sub.Close()
	defer n.metrics.pullOpened()()

	snapshot := enumerators.Map(n.store.ListItems(ctx, args.Collection), func(item *api.Item) (*api.CollectionChange, error) {
		return &api.CollectionChange{Collection: args.Collection, NewValue: item}, nil
	})
	if !streamAll(ctx, snapshot, bidi, false) {
		return
	}

	for {
		select {
		case change := <-sub.C:
			if err := bidi.Encode(change); err != nil {
				bidi.Close(err)
				return
			}
		case <-sub.Overflow():
			n.logger.WarnContext(ctx, "node: collection subscriber fell behind", slog.String("collection", args.Collection))
			bidi.CloseSend(api.Errorf(api.Unavailable, "subscriber too slow"))
			return
		case <-bidi.Done():
			return
		case <-ctx.Done():
			bidi.CloseSend(ctx.Err())
			return
		}
	}
}

func (n *defaultNode) handleListCollection(ctx context.Context, args *api.ListCollection, bidi api.BidiStream) {
	if args.Collection == "" {
		bidi.CloseSend(api.Errorf(api.InvalidArgument, "collection is required"))
		return
	}
	streamAll(ctx, n.store.ListItems(ctx, args.Collection), bidi, true)
}

func (n *defaultNode) handleGetCollections(ctx context.Context, _ *api.GetCollections, bidi api.BidiStream) {
	streamAll(ctx, n.store.ListCollections(ctx), bidi, true)
}

func (n *defaultNode) handleGetTrait(ctx context.Context, args *api.GetTrait, bidi api.BidiStream) {
	if !checkContext(ctx, bidi) {
		return
	}
	value, err := n.store.GetTrait(ctx, args.Device, args.Trait)
	if err != nil {
		bidi.CloseSend(toStatus(err))
		return
	}
	reply(bidi, value)
}

func (n *defaultNode) handleUpdateTrait(ctx context.Context, args *api.UpdateTrait, bidi api.BidiStream) {
	if args.Device == "" || args.Trait == "" {
		bidi.CloseSend(api.Errorf(api.InvalidArgument, "device and trait are required"))
		return
	}
	if len(args.Payload) == 0 {
		bidi.CloseSend(api.Errorf(api.InvalidArgument, "payload is required"))
		return
	}
	if !checkContext(ctx, bidi) {
		return
	}

	value := &api.TraitValue{
		Device:  args.Device,
		Trait:   args.Trait,
		Payload: args.Payload,
	}
	n.writeMu.Lock()
	value.ChangeTime = timestamp.GetTimestamp()
	err := n.store.PutTrait(ctx, value)
	if err == nil {
		n.traits.Publish(TraitTopic(value.Device, value.Trait), value)
	}
	n.writeMu.Unlock()
	if err != nil {
		bidi.CloseSend(toStatus(err))
		return
	}
	n.logger.DebugContext(ctx, "node: trait updated", slog.String("device", value.Device), slog.String("trait", value.Trait))
	reply(bidi, value)
}

func (n *defaultNode) handleUpsertItem(ctx context.Context, args *api.UpsertItem, bidi api.BidiStream) {
	if args.Collection == "" || args.Item == nil || args.Item.ID == "" {
		bidi.CloseSend(api.Errorf(api.InvalidArgument, "collection and item id are required"))
		return
	}
	if !checkContext(ctx, bidi) {
		return
	}

	n.writeMu.Lock()
	old, err := n.store.UpsertItem(ctx, args.Collection, args.Item)
	var change *api.CollectionChange
	if err == nil {
		change = &api.CollectionChange{
			Collection: args.Collection,
			OldValue:   old,
			NewValue:   args.Item,
			ChangeTime: timestamp.GetTimestamp(),
		}
		n.collections.Publish(CollectionTopic(args.Collection), change)
	}
	n.writeMu.Unlock()
	if err != nil {
		bidi.CloseSend(toStatus(err))
		return
	}
	reply(bidi, change)
}

func (n *defaultNode) handleDeleteItem(ctx context.Context, args *api.DeleteItem, bidi api.BidiStream) {
	if args.Collection == "" || args.ID == "" {
		bidi.CloseSend(api.Errorf(api.InvalidArgument, "collection and id are required"))
		return
	}
	if !checkContext(ctx, bidi) {
		return
	}

	n.writeMu.Lock()
	old, err := n.store.DeleteItem(ctx, args.Collection, args.ID)
	var change *api.CollectionChange
	if err == nil && old != nil {
		change = &api.CollectionChange{
			Collection: args.Collection,
			OldValue:   old,
			ChangeTime: timestamp.GetTimestamp(),
		}
		n.collections.Publish(CollectionTopic(args.Collection), change)
	}
	n.writeMu.Unlock()
	switch {
	case err != nil:
		bidi.CloseSend(toStatus(err))
	case change == nil:
		bidi.CloseSend(api.Errorf(api.NotFound, "item %s/%s not found", args.Collection, args.ID))
	default:
		reply(bidi, change)
	}
}

func reply(bidi api.BidiStream, msg any) {
	if err := bidi.Encode(msg); err != nil {
		bidi.Close(err)
		return
	}
	bidi.CloseSend(nil)
}

// streamAll encodes every element. With end set the stream is half-closed
// afterwards. It reports whether every element was sent.
func streamAll[T any](ctx context.Context, enumerator enumerators.Enumerator[T], bidi api.BidiStream, end bool) bool {
	defer enumerator.Dispose()
	for enumerator.MoveNext() {
		if !checkContext(ctx, bidi) {
			return false
		}
		item, err := enumerator.Current()
		if err != nil {
			bidi.CloseSend(toStatus(err))
			return false
		}
		if err := bidi.Encode(item); err != nil {
			bidi.Close(err)
			return false
		}
	}
	if end {
		bidi.CloseSend(nil)
	}
	return true
}

func checkContext(ctx context.Context, bidi api.BidiStream) bool {
	if err := ctx.Err(); err != nil {
		bidi.CloseSend(err)
		return false
	}
	return true
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return api.Errorf(api.NotFound, "%v", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return api.Errorf(api.Internal, "storage: %v", err)
	}
}
