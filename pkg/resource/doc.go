// Package resource turns long-lived server streams into observable values.
//
// A Value holds the latest state of one streamed document; a Collection holds
// a keyed set of items maintained from upsert/delete changes. Pull keeps the
// underlying stream alive for as long as the returned Watch is not cancelled:
// failures are recorded on the resource and retried with exponential backoff
// (1s doubling to 15s), and any received message resets the delay.
//
// A Tracker records loading/response/error for one-shot calls, and a Scope
// cancels every watch attached to it when disposed.
//
//	scope := resource.NewScope()
//	defer scope.Dispose()
//
//	lights := resource.NewValue[Brightness]()
//	scope.Add(resource.Pull(ctx, "lighting", lights, source))
//
//	updates, stop := lights.Subscribe()
//	defer stop()
//	for range updates {
//	    snap := lights.Snapshot()
//	    ...
//	}
package resource
