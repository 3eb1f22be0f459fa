package model

import "fmt"

// View is the dashboard page a consumer is looking at. It decides which
// data the poller refreshes.
type View string

const (
	ViewOverview    View = "overview"
	ViewOptionChain View = "option-chain"
	ViewFutures     View = "futures"
	ViewOptions     View = "options"
)

// ParseView validates a view name.
func ParseView(s string) (View, error) {
	switch v := View(s); v {
	case ViewOverview, ViewOptionChain, ViewFutures, ViewOptions:
		return v, nil
	}
	return "", fmt.Errorf("unknown view %q", s)
}
