package bench

import (
	"context"
	"encoding/json"
)

// PageFunc fetches one page at the given cursor position.
type PageFunc func(ctx context.Context, offset, limit int) (Page, error)

// PageOptions bounds the adaptive pagination loop.
type PageOptions struct {
	InitialLimit  int // first requested page size
	RetryAttempts int // corrective retries allowed per page
}

func (o PageOptions) normalized() PageOptions {
	if o.InitialLimit <= 0 {
		o.InitialLimit = 10
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 5
	}
	return o
}

// CollectPages drains a paginated endpoint whose effective page-size ceiling
// is only discoverable from overflow error text. It always terminates and
// always returns the items accumulated so far; transport failures never
// propagate past this boundary, because hitting the hidden ceiling is the
// expected steady state of the backing API.
//
// Recovery rules, applied to the same offset without advancing:
//   - "exceeded X > Y" means the server allows at most Y; retry with limit Y
//   - invalid-parameter replies shrink the limit by halving toward 1
//   - anything else, or an unparseable ceiling, gives up with partial results
func CollectPages(ctx context.Context, fetch PageFunc, opts PageOptions) []json.RawMessage {
	opts = opts.normalized()

	items := []json.RawMessage{}
	offset := 0
	limit := opts.InitialLimit
	retries := 0

	for {
		if ctx.Err() != nil {
			return items
		}

		page, err := fetch(ctx, offset, limit)
		if err != nil {
			retries++
			if retries > opts.RetryAttempts {
				return items
			}
			msg := errorMessage(err)
			if ceiling, ok := ParseLimitOverflow(msg); ok {
				if ceiling < limit {
					limit = ceiling
					continue
				}
				// The disclosed ceiling does not explain the failure; fail
				// safe rather than mis-parse.
				return items
			}
			if IsInvalidPagination(msg) {
				if limit > 1 {
					limit /= 2
					if limit < 1 {
						limit = 1
					}
					continue
				}
				return items
			}
			return items
		}

		items = append(items, page.Items...)
		retries = 0

		if page.NextOffset == nil || *page.NextOffset < 0 {
			return items
		}
		if *page.NextOffset <= offset {
			// A cursor that does not advance would replay pages forever.
			return items
		}
		offset = *page.NextOffset
	}
}
