// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Spiderexpress Contributors

package spider_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spiderexpress-dev/spiderexpress/internal/spider"
)

func TestPhase_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		from    spider.Phase
		to      spider.Phase
		allowed bool
	}{
		{"idle to starting", spider.PhaseIdle, spider.PhaseStarting, true},
		{"starting to gathering", spider.PhaseStarting, spider.PhaseGathering, true},
		{"gathering loops", spider.PhaseGathering, spider.PhaseGathering, true},
		{"gathering to sampling", spider.PhaseGathering, spider.PhaseSampling, true},
		{"sampling to gathering", spider.PhaseSampling, spider.PhaseGathering, true},
		{"sampling to retrying", spider.PhaseSampling, spider.PhaseRetrying, true},
		{"retrying to gathering", spider.PhaseRetrying, spider.PhaseGathering, true},
		{"sampling to stopping", spider.PhaseSampling, spider.PhaseStopping, true},
		{"gathering to stopping", spider.PhaseGathering, spider.PhaseStopping, true},
		// Invalid transitions
		{"idle to gathering", spider.PhaseIdle, spider.PhaseGathering, false},
		{"stopping is terminal", spider.PhaseStopping, spider.PhaseGathering, false},
		{"retrying to sampling", spider.PhaseRetrying, spider.PhaseSampling, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, spider.ValidTransition(tt.from, tt.to))
		})
	}
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "idle", spider.PhaseIdle.String())
	assert.Equal(t, "gathering", spider.PhaseGathering.String())
	assert.Equal(t, "stopping", spider.PhaseStopping.String())
	assert.Equal(t, "unknown", spider.Phase(99).String())
}
