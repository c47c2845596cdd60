package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fgrzl/resourcekit"
	"github.com/fgrzl/resourcekit/pkg/resource"
	"github.com/spf13/cobra"
)

func watchCmd(opts *rootOptions) *cobra.Command {
	client := &clientOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a trait or collection until interrupted",
	}
	client.bind(cmd)

	cmd.AddCommand(
		&cobra.Command{
			Use:   "trait <device> <trait>",
			Short: "Print every value of a trait",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWatch(cmd.Context(), opts, client, func(scope *resource.Scope, b *resourcekit.Binding) snapshotter {
					value := resourcekit.WatchTrait[json.RawMessage](cmd.Context(), scope, b, args[0], args[1])
					return snapshotter{
						subscribe: value.Subscribe,
						line: func() watchLine {
							snap := value.Snapshot()
							line := newWatchLine(snap.Loading, snap.StreamError, snap.UpdateTime)
							if snap.HasValue {
								line.Value = snap.Value
							}
							return line
						},
					}
				})
			},
		},
		&cobra.Command{
			Use:   "collection <name>",
			Short: "Print the items of a collection after every change",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWatch(cmd.Context(), opts, client, func(scope *resource.Scope, b *resourcekit.Binding) snapshotter {
					items := resourcekit.WatchItems(cmd.Context(), scope, b, args[0])
					return snapshotter{
						subscribe: items.Subscribe,
						line: func() watchLine {
							snap := items.Snapshot()
							line := newWatchLine(snap.Loading, snap.StreamError, snap.UpdateTime)
							payloads := make(map[string]json.RawMessage, len(snap.Value))
							for id, item := range snap.Value {
								payloads[id] = item.Payload
							}
							line.Value = payloads
							return line
						},
					}
				})
			},
		},
	)

	return cmd
}

type snapshotter struct {
	subscribe func() (<-chan struct{}, func())
	line      func() watchLine
}

type watchLine struct {
	Time    time.Time `json:"time,omitzero"`
	Loading bool      `json:"loading,omitempty"`
	Error   string    `json:"error,omitempty"`
	Value   any       `json:"value,omitempty"`
}

func newWatchLine(loading bool, err error, updated time.Time) watchLine {
	line := watchLine{Time: updated, Loading: loading}
	if err != nil {
		line.Error = err.Error()
	}
	return line
}

func runWatch(ctx context.Context, opts *rootOptions, client *clientOptions, start func(*resource.Scope, *resourcekit.Binding) snapshotter) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	binding, closePool, err := client.connect(cfg)
	if err != nil {
		return err
	}
	defer closePool()

	scope := resource.NewScope()
	defer scope.Dispose()

	s := start(scope, binding)
	updates, stop := s.subscribe()
	defer stop()

	return printUpdates(ctx, os.Stdout, updates, s.line)
}

func printUpdates(ctx context.Context, w io.Writer, updates <-chan struct{}, line func() watchLine) error {
	enc := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-updates:
			if err := enc.Encode(line()); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		}
	}
}
