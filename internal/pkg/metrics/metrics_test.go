package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthOutcomes_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewAuthOutcomes(reg)
	require.NoError(t, err)

	m.Record("login", Success)
	m.Record("login", Success)
	m.Record("login", Failure)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Counter("login", Success)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Counter("login", Failure)))
}

func TestAuthOutcomes_RegisterTwiceSharesCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewAuthOutcomes(reg)
	require.NoError(t, err)
	b, err := NewAuthOutcomes(reg)
	require.NoError(t, err)

	a.Record("register", Success)
	assert.Equal(t, 1.0, testutil.ToFloat64(b.Counter("register", Success)))
}

func TestAuthOutcomes_NilIsNoop(t *testing.T) {
	var m *AuthOutcomes
	assert.NotPanics(t, func() { m.Record("login", Success) })
}
