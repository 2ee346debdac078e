
package regional

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ChromeBrowser drives a headless Chrome per Open call.
type ChromeBrowser struct {
	execPath string
}

// NewChromeBrowser uses execPath when set, otherwise chromedp's lookup.
func NewChromeBrowser(execPath string) *ChromeBrowser {
	return &ChromeBrowser{execPath: execPath}
}

func (b *ChromeBrowser) Open(ctx context.Context, opts PageOptions) (Page, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.WindowSize(1920, 1080),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-accelerated-2d-canvas", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if b.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(b.execPath))
	}

	// The browser lives until Close, not until ctx ends.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	p := &chromePage{ctx: tabCtx, cancel: func() { cancelTab(); cancelAlloc() }}

	var actions []chromedp.Action
	if blocked := blockedTypes(opts.Block); len(blocked) > 0 {
		chromedp.ListenTarget(tabCtx, func(ev any) {
			e, ok := ev.(*fetch.EventRequestPaused)
			if !ok {
				return
			}
			go func() {
				c := chromedp.FromContext(tabCtx)
				if c == nil || c.Target == nil {
					return
				}
				ectx := cdp.WithExecutor(tabCtx, c.Target)
				if blocked[e.ResourceType] {
					_ = fetch.FailRequest(e.RequestID, network.ErrorReasonBlockedByClient).Do(ectx)
					return
				}
				_ = fetch.ContinueRequest(e.RequestID).Do(ectx)
			}()
		})
		actions = append(actions, fetch.Enable())
	}

	// The first Run allocates the browser and must use the tab context itself.
	stop := context.AfterFunc(ctx, p.cancel)
	defer stop()
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		p.cancel()
		return nil, err
	}
	if ctx.Err() != nil {
		p.cancel()
		return nil, ctx.Err()
	}
	return p, nil
}

func blockedTypes(kinds []ResourceKind) map[network.ResourceType]bool {
	out := map[network.ResourceType]bool{}
	for _, k := range kinds {
		switch k {
		case ResourceImage:
			out[network.ResourceTypeImage] = true
		case ResourceFont:
			out[network.ResourceTypeFont] = true
		case ResourceMedia:
			out[network.ResourceTypeMedia] = true
		}
	}
	return out
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// scoped derives an action context from the tab that also honours ctx.
func (p *chromePage) scoped(ctx context.Context) (context.Context, context.CancelFunc) {
	run, cancel := context.WithCancel(p.ctx)
	if dl, ok := ctx.Deadline(); ok {
		var cancelDL context.CancelFunc
		run, cancelDL = context.WithDeadline(run, dl)
		prev := cancel
		cancel = func() { cancelDL(); prev() }
	}
	stop := context.AfterFunc(ctx, cancel)
	return run, func() { stop(); cancel() }
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	run, cancel := p.scoped(ctx)
	defer cancel()
	return chromedp.Run(run, chromedp.Navigate(url))
}

func (p *chromePage) WaitPopulated(ctx context.Context, id string) error {
	run, cancel := p.scoped(ctx)
	defer cancel()

	idJSON, _ := json.Marshal(id)
	expr := fmt.Sprintf(`(() => { const el = document.getElementById(%s); return !!el && el.textContent.trim() !== "" && el.textContent.trim() !== "-"; })()`, idJSON)

	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	for {
		var ready bool
		if err := chromedp.Run(run, chromedp.Evaluate(expr, &ready)); err != nil {
			return err
		}
		if ready {
			return nil
		}
		select {
		case <-run.Done():
			return run.Err()
		case <-tick.C:
		}
	}
}

func (p *chromePage) TextByID(ctx context.Context, ids []string) (map[string]string, error) {
	run, cancel := p.scoped(ctx)
	defer cancel()

	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	expr := fmt.Sprintf(`(() => {
		const out = {};
		for (const id of %s) {
			const el = document.getElementById(id);
			out[id] = el && el.textContent ? el.textContent.trim() : "";
		}
		return out;
	})()`, idsJSON)

	out := map[string]string{}
	if err := chromedp.Run(run, chromedp.Evaluate(expr, &out)); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}
