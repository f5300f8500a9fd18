// Package pagination produces the request parameters for repeated fetch
// cycles and absorbs per-page failures by requesting smaller pages.
//
// The remote API rejects requests whose result exceeds an undocumented size
// ceiling. The only signal is a failed response, so the queues discover the
// safe page size empirically and remember it for the rest of the session:
//
//	q := pagination.NewSmartQueue(100, 0, nil)
//	for p, ok := q.Next(); ok; p, ok = q.Next() {
//		resp, err := hub.Fetch(ctx, space, p)
//		if err != nil {
//			if err := q.Retry(p, err); err != nil {
//				return err // page cannot shrink further
//			}
//			continue
//		}
//		q.Succeed(p, resp.Handle)
//	}
//
// Three queues are provided:
//   - SmartQueue: cursor pagination with an adaptive page limit
//   - TileQueue: a fixed list of tile ids, no retries
//   - BBoxQueue: spatial divide and conquer over a bounding box
//
// Queues are not safe for concurrent use; the owning fetch session
// serialises access.
package pagination
