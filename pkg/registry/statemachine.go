package registry

import (
	"github.com/platinummonkey/plugin-portal/pkg/apperrors"
)

// Transition is a publication lifecycle action
type Transition string

const (
	TransitionSubmit    Transition = "submit"
	TransitionApprove   Transition = "approve"
	TransitionReject    Transition = "reject"
	TransitionPublish   Transition = "publish"
	TransitionUnpublish Transition = "unpublish"
)

type transitionRule struct {
	from         []Status
	to           Status
	pastTense    string
	needsVersion bool
}

var transitionRules = map[Transition]transitionRule{
	TransitionSubmit: {
		from:      []Status{StatusDraft, StatusRejected, StatusUnpublished},
		to:        StatusSubmitted,
		pastTense: "submitted",
	},
	TransitionApprove: {
		from:      []Status{StatusSubmitted},
		to:        StatusApproved,
		pastTense: "approved",
	},
	TransitionReject: {
		from:      []Status{StatusSubmitted},
		to:        StatusRejected,
		pastTense: "rejected",
	},
	TransitionPublish: {
		from:         []Status{StatusApproved},
		to:           StatusPublished,
		pastTense:    "published",
		needsVersion: true,
	},
	TransitionUnpublish: {
		from:      []Status{StatusPublished},
		to:        StatusUnpublished,
		pastTense: "unpublished",
	},
}

// ParseTransition validates a transition name
func ParseTransition(s string) (Transition, error) {
	t := Transition(s)
	if _, ok := transitionRules[t]; !ok {
		return "", apperrors.Validation("unknown transition %q", s)
	}
	return t, nil
}

// Target returns the state a transition leads to
func (t Transition) Target() Status {
	return transitionRules[t].to
}

// Sources returns the states a transition may start from
func (t Transition) Sources() []Status {
	rule := transitionRules[t]
	out := make([]Status, len(rule.from))
	copy(out, rule.from)
	return out
}

// AllowedFrom reports whether t may start from s
func (t Transition) AllowedFrom(s Status) bool {
	for _, from := range transitionRules[t].from {
		if from == s {
			return true
		}
	}
	return false
}

// Apply moves p to the transition's target state. On error p is unchanged.
func (t Transition) Apply(p *Plugin) error {
	rule, ok := transitionRules[t]
	if !ok {
		return apperrors.Validation("unknown transition %q", string(t))
	}
	if !t.AllowedFrom(p.Status) {
		return apperrors.Newf(apperrors.KindInvalidTransition, "Plugin cannot be %s", rule.pastTense)
	}
	if rule.needsVersion && len(p.Versions) == 0 {
		return apperrors.New(apperrors.KindInvalidTransition, "Plugin has no versions to publish")
	}
	p.Status = rule.to
	return nil
}
