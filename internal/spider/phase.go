// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package spider

import (
	"context"

	spidererr "github.com/spiderexpress-dev/spiderexpress/pkg/errors"
)

// Phase is the controller's lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseStarting
	PhaseGathering
	PhaseSampling
	PhaseRetrying
	PhaseStopping
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseStarting:
		return "starting"
	case PhaseGathering:
		return "gathering"
	case PhaseSampling:
		return "sampling"
	case PhaseRetrying:
		return "retrying"
	case PhaseStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// validTransitions defines allowed phase transitions as an adjacency list.
var validTransitions = map[Phase]map[Phase]bool{
	PhaseIdle: {
		PhaseStarting: true,
	},
	PhaseStarting: {
		PhaseGathering: true,
		PhaseStopping:  true,
	},
	PhaseGathering: {
		PhaseGathering: true,
		PhaseSampling:  true,
		PhaseStopping:  true,
	},
	PhaseSampling: {
		PhaseGathering: true,
		PhaseRetrying:  true,
		PhaseStopping:  true,
	},
	PhaseRetrying: {
		PhaseGathering: true,
		PhaseStopping:  true,
	},
	PhaseStopping: {},
}

// ValidTransition returns true if moving from one phase to another is
// allowed.
func ValidTransition(from, to Phase) bool {
	allowed, exists := validTransitions[from][to]
	return exists && allowed
}

// transition advances the controller phase and persists it. Every phase
// change writes AppState so a restart resumes from a known point.
func (s *Spider) transition(ctx context.Context, to Phase) error {
	if !ValidTransition(s.phase, to) {
		return spidererr.Errorf(spidererr.CodeSpiderTransitionInvalid,
			"invalid phase transition: %s -> %s", s.phase, to)
	}
	s.phase = to
	s.state.Phase = to.String()
	return s.store.SaveState(ctx, s.state)
}
