// Package progress defines the progress-observer contract used by the
// registry HTTP client and ensure-present state machine, plus the one
// required terminal implementation backed by mpb.
package progress

import (
	"fmt"
	"io"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Observer is a pure progress sink. Implementations must tolerate
// concurrent calls from multiple blob workers. The default Observer is a
// no-op; NopObserver satisfies it.
type Observer interface {
	SetLength(mb int64)
	SetPosition(mb int64)
	SetMessage(msg string)
	FinishWithMessage(msg string)
}

type nopObserver struct{}

func (nopObserver) SetLength(int64)         {}
func (nopObserver) SetPosition(int64)       {}
func (nopObserver) SetMessage(string)       {}
func (nopObserver) FinishWithMessage(string) {}

// NopObserver is the default, silent Observer.
var NopObserver Observer = nopObserver{}

// Pool wraps an *mpb.Progress; the caller must call Wait() after every bar
// it created has either completed or been aborted, or Wait() will hang.
type Pool struct {
	progress *mpb.Progress
}

// NewPool creates a progress pool rendering to out (use io.Discard to
// suppress rendering entirely).
func NewPool(out io.Writer) *Pool {
	return &Pool{progress: mpb.New(mpb.WithWidth(40), mpb.WithOutput(out))}
}

// Wait blocks until every bar created from this pool has completed or been
// aborted.
func (p *Pool) Wait() {
	p.progress.Wait()
}

// barObserver adapts an *mpb.Bar to the Observer interface.
type barObserver struct {
	bar        *mpb.Bar
	discard    bool
	kind       string
	digestHint string
}

// NewBar creates an Observer for a single blob transfer. sizeBytes <= 0
// renders a spinner instead of a sized bar.
func (p *Pool) NewBar(sizeBytes int64, kind, digestHint string, discard bool) Observer {
	const shortDigestLen = 12
	prefix := fmt.Sprintf("%s %s", kind, digestHint)
	maxPrefixLen := len("blob ") + shortDigestLen + len(kind) + 1
	if len(prefix) > maxPrefixLen {
		prefix = prefix[:maxPrefixLen]
	}
	onComplete := prefix + " done"

	var bar *mpb.Bar
	if sizeBytes > 0 {
		bar = p.progress.AddBar(sizeBytes,
			mpb.BarFillerClearOnComplete(),
			mpb.PrependDecorators(decor.OnComplete(decor.Name(prefix), onComplete)),
			mpb.AppendDecorators(decor.OnComplete(decor.CountersKibiByte("%.1f / %.1f"), "")),
		)
	} else {
		bar = p.progress.New(0,
			mpb.SpinnerStyle(".", "..", "...", "....", "").PositionLeft(),
			mpb.BarFillerClearOnComplete(),
			mpb.PrependDecorators(decor.OnComplete(decor.Name(prefix), onComplete)),
		)
	}
	return &barObserver{bar: bar, discard: discard, kind: kind, digestHint: digestHint}
}

const bytesInMB = 1024 * 1024

func (b *barObserver) SetLength(mb int64) {
	// mpb sizes the bar at creation time; nothing further to adjust here.
}

func (b *barObserver) SetPosition(mb int64) {
	b.bar.SetCurrent(mb * bytesInMB)
}

func (b *barObserver) SetMessage(msg string) {}

func (b *barObserver) FinishWithMessage(msg string) {
	b.bar.Abort(false)
}
