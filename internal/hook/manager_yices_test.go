//go:build yices

package hook

import (
	"testing"

	"kcore/internal/smt"

	"github.com/stretchr/testify/assert"
)

func Test_SplitOptionChecksYices(t *testing.T) {
	pairs, leaves := optionChecks(t, smt.NewYicesSolver())
	assert.LessOrEqual(t, leaves, 9)
	assert.Equal(t, optionPairs, pairs)
}
