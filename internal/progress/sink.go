package progress

import (
	"context"

	"github.com/JakeFAU/stage-progress/pkg/reporter"
)

// Sink consumes batches of stage events. Implementations must be safe for
// repeated calls, honor ctx deadlines, and may be invoked concurrently.
type Sink interface {
	Consume(ctx context.Context, batch []reporter.Event) error
	Close(ctx context.Context) error
}

// Hub satisfies reporter.Emitter so a Reporter can feed it directly.
var _ reporter.Emitter = (*Hub)(nil)
