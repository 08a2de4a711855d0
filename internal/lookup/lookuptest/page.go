// Package lookuptest provides a scripted in-memory lookup.Page.
package lookuptest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hlrcheck/hlr-batch/internal/hlr"
	"github.com/hlrcheck/hlr-batch/internal/lookup"
)

// ErrTimeout is what the scripted page returns when a wait does not succeed.
var ErrTimeout = errors.New("lookuptest: wait timed out")

// Page simulates the target form. The zero value answers every lookup with an
// empty result container, which never satisfies the result wait.
type Page struct {
	// Respond returns the result text for a submitted value.
	Respond func(value string) (string, error)
	// LockedWaits is how many interactive waits fail before the form unlocks.
	LockedWaits int
	// NavigateErr, when set, is consulted on every navigation.
	NavigateErr func(url string) error

	mu          sync.Mutex
	filled      string
	text        string
	respondErr  error
	lockedSeen  int
	calls       []string
	submits     map[string]int
	closed      bool
	closeCalled int
}

// New returns a page that answers lookups with respond.
func New(respond func(value string) (string, error)) *Page {
	return &Page{Respond: respond}
}

// Fixed returns a page that answers every lookup with text.
func Fixed(text string) *Page {
	return New(func(string) (string, error) { return text, nil })
}

func (p *Page) record(format string, args ...any) {
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
}

func (p *Page) checkOpen() error {
	if p.closed {
		return fmt.Errorf("%w: page closed", hlr.ErrSessionFatal)
	}
	return nil
}

func (p *Page) Navigate(_ context.Context, url string, readiness lookup.Readiness, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen(); err != nil {
		return err
	}
	p.record("navigate %s %s", url, readiness)
	p.filled = ""
	p.text = ""
	p.respondErr = nil
	if p.NavigateErr != nil {
		return p.NavigateErr(url)
	}
	return nil
}

func (p *Page) EvaluateScript(_ context.Context, js string, _ any) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen(); err != nil {
		return nil, err
	}
	p.record("evaluate")
	return nil, nil
}

func (p *Page) ForceEnable(_ context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen(); err != nil {
		return err
	}
	p.record("enable %s", selector)
	return nil
}

func (p *Page) Fill(_ context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen(); err != nil {
		return err
	}
	p.record("fill %s %s", selector, value)
	p.filled = value
	return nil
}

func (p *Page) Click(_ context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen(); err != nil {
		return err
	}
	p.record("click %s", selector)
	if p.submits == nil {
		p.submits = make(map[string]int)
	}
	p.submits[p.filled]++
	if p.Respond != nil {
		// Errors surface from the result wait, like a container that never fills.
		p.text, p.respondErr = p.Respond(p.filled)
	}
	return nil
}

func (p *Page) WaitForCondition(_ context.Context, cond lookup.Condition, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen(); err != nil {
		return err
	}
	switch cond.Kind {
	case lookup.ConditionInteractive:
		p.record("wait interactive")
		if p.lockedSeen < p.LockedWaits {
			p.lockedSeen++
			return ErrTimeout
		}
		return nil
	case lookup.ConditionTextContainsAny:
		p.record("wait text")
		if p.respondErr != nil {
			return p.respondErr
		}
		for _, m := range cond.Markers {
			if strings.Contains(p.text, m) {
				return nil
			}
		}
		return ErrTimeout
	}
	return fmt.Errorf("lookuptest: unknown condition %d", cond.Kind)
}

func (p *Page) ReadText(_ context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkOpen(); err != nil {
		return "", err
	}
	p.record("read %s", selector)
	return p.text, nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.closeCalled++
	return nil
}

// Kill makes every later call fail as if the browser died.
func (p *Page) Kill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

// Submits reports how many times value was submitted.
func (p *Page) Submits(value string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.submits[value]
}

// TotalSubmits reports the number of submit clicks across all values.
func (p *Page) TotalSubmits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.submits {
		n += c
	}
	return n
}

// Calls returns a snapshot of the recorded driver calls.
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.calls))
	copy(out, p.calls)
	return out
}

// CloseCount reports how many times Close was called.
func (p *Page) CloseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeCalled
}

// Factory returns a lookup.PageFactory handing out p.
func (p *Page) Factory() lookup.PageFactory {
	return func(context.Context) (lookup.Page, error) { return p, nil }
}
