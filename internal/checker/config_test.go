package checker

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodtools/modelchecker/internal/checks"
)

func TestNewConfigBuildsChecks(t *testing.T) {
	cfg := NewConfig(Options{})
	require.NotEmpty(t, cfg.Checks())
	// The registry is dominated by the generated per-column battery.
	assert.Greater(t, len(cfg.Checks()), 300)
}

func TestNoDuplicateCheckIdentity(t *testing.T) {
	cfg := NewConfig(Options{AllowBeta: true})

	seen := map[string]bool{}
	for _, chk := range cfg.Checks() {
		key := fmt.Sprintf("%d:%s", chk.Code(), chk.Column().QualifiedName())
		assert.False(t, seen[key], "duplicate check %s", key)
		seen[key] = true
	}
}

func TestIterChecksFiltersByLevel(t *testing.T) {
	cfg := NewConfig(Options{})

	all := cfg.IterChecks(checks.Info)
	warnings := cfg.IterChecks(checks.Warning)
	errors := cfg.IterChecks(checks.Error)

	assert.Greater(t, len(all), len(warnings))
	assert.Greater(t, len(warnings), len(errors))
	for _, chk := range errors {
		assert.Equal(t, checks.Error, chk.Level())
	}
	for _, chk := range warnings {
		assert.GreaterOrEqual(t, int(chk.Level()), int(checks.Warning))
	}
}

func TestIterChecksHonorsBetaOptOut(t *testing.T) {
	withoutBeta := NewConfig(Options{}).IterChecks(checks.Info)
	for _, chk := range withoutBeta {
		assert.False(t, chk.IsBeta(), "beta check %d leaked", chk.Code())
	}

	withBeta := NewConfig(Options{AllowBeta: true}).IterChecks(checks.Info)
	assert.Greater(t, len(withBeta), len(withoutBeta))
}

func TestIterChecksHonorsIgnorePatterns(t *testing.T) {
	cfg := NewConfig(Options{Ignore: []string{"00*"}})
	for _, chk := range cfg.IterChecks(checks.Info) {
		assert.GreaterOrEqual(t, chk.Code(), 10, "code %04d should be ignored", chk.Code())
	}

	exact := NewConfig(Options{Ignore: []string{"0021"}})
	for _, chk := range exact.IterChecks(checks.Info) {
		assert.NotEqual(t, 21, chk.Code())
	}
}

func TestRegistryOrderIsDeterministic(t *testing.T) {
	a := NewConfig(Options{AllowBeta: true}).Checks()
	b := NewConfig(Options{AllowBeta: true}).Checks()
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Code(), b[i].Code())
		assert.Equal(t, a[i].Column().QualifiedName(), b[i].Column().QualifiedName())
	}
}
