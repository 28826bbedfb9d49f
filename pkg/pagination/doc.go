// Package pagination streams paged listing endpoints one page at a time.
//
// A Stream owns a cursor and at most one in-flight fetch. Each call to Poll
// advances a small state machine:
//
//	uninitialized -> fetching -> idle -> fetching -> ... -> exhausted
//
// Poll never blocks. It returns Pending while a fetch is outstanding (Wait
// returns a channel closed when that fetch resolves), Ready with a page or
// with the terminal error, and Done once the stream is exhausted. Next and
// All wrap Poll for callers who simply want to block:
//
//	pc := pagination.NewPagedClient(fireblocksClient)
//	for page, err := range pc.Vaults(100).All(ctx) {
//		if err != nil {
//			return err
//		}
//		process(page.Accounts)
//	}
//
// How the next cursor is derived is decided by a Policy, selected when the
// stream is built:
//   - TokenPolicy follows the opaque "after" token reported by the server
//     and stops when the server omits it.
//   - TimestampPolicy advances to the last item's timestamp plus one
//     millisecond and stops on the first empty page.
//
// Nothing is fetched ahead of the caller: the cursor for fetch N+1 is always
// derived from the resolved result of fetch N. Streams do not retry; retries
// belong to the transport. The first error ends the stream.
package pagination
