package lookup

import (
	"context"
	"time"
)

// Readiness is the navigation milestone to wait for before returning.
type Readiness string

const (
	ReadinessCommit           Readiness = "commit"
	ReadinessDOMContentLoaded Readiness = "domcontentloaded"
	ReadinessLoad             Readiness = "load"
	ReadinessNetworkIdle      Readiness = "networkidle"
)

// ConditionKind selects how a Condition is evaluated.
type ConditionKind int

const (
	// ConditionInteractive holds when every selector is visible and enabled.
	ConditionInteractive ConditionKind = iota
	// ConditionTextContainsAny holds when the first selector exists and its
	// text contains at least one marker.
	ConditionTextContainsAny
)

// Condition is a backend-agnostic page predicate.
type Condition struct {
	Kind      ConditionKind
	Selectors []string
	Markers   []string
}

// Interactive builds a condition that holds once all selectors can be interacted with.
func Interactive(selectors ...string) Condition {
	return Condition{Kind: ConditionInteractive, Selectors: selectors}
}

// TextContainsAny builds a condition on the text of selector.
func TextContainsAny(selector string, markers ...string) Condition {
	return Condition{Kind: ConditionTextContainsAny, Selectors: []string{selector}, Markers: markers}
}

// Page is the page-automation capability the lookup protocol drives.
//
// Implementations wrap failures with the hlr sentinel errors where they apply;
// in particular a dead browser or closed page must wrap hlr.ErrSessionFatal.
type Page interface {
	Navigate(ctx context.Context, url string, readiness Readiness, timeout time.Duration) error
	EvaluateScript(ctx context.Context, js string, arg any) (any, error)
	// ForceEnable clears the disabled state of the element matching selector.
	ForceEnable(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	WaitForCondition(ctx context.Context, cond Condition, timeout time.Duration) error
	ReadText(ctx context.Context, selector string) (string, error)
	Close() error
}

// Snapshotter is implemented by pages that can dump debug artifacts.
type Snapshotter interface {
	Screenshot(ctx context.Context, path string) error
	Content(ctx context.Context) (string, error)
}

// PageFactory opens a new exclusively-owned page session.
type PageFactory func(ctx context.Context) (Page, error)
