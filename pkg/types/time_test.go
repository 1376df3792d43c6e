package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogicalTimeBoundary(t *testing.T) {
	tests := []struct {
		name string
		galt LogicalTime
		lcts LogicalTimeInterval
		want LogicalTime
	}{
		{"mid step", 2_500_000, 1_000_000, 3_000_000},
		{"exact multiple moves forward", 3_000_000, 1_000_000, 4_000_000},
		{"zero", 0, 250_000, 250_000},
		{"just below", 999_999, 1_000_000, 1_000_000},
		{"negative", -1_500_000, 1_000_000, -1_000_000},
		{"negative exact", -2_000_000, 1_000_000, -1_000_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LogicalTimeBoundary(tt.galt, tt.lcts)
			assert.Equal(t, tt.want, got)
			assert.Greater(t, got, tt.galt)
			assert.Zero(t, int64(got)%int64(tt.lcts))
		})
	}
}

func TestNextTimeStep(t *testing.T) {
	assert.Equal(t, LogicalTime(4_000_000), NextTimeStep(3_000_000, 1_000_000))
}
