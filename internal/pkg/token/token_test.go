package token

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNumericCode_SixDigits(t *testing.T) {
	re := regexp.MustCompile(`^[0-9]{6}$`)
	for i := 0; i < 200; i++ {
		code, err := NewNumericCode(6)
		require.NoError(t, err)
		assert.Regexp(t, re, code)
	}
}

func TestNewResetSecret_RoundTripsAccountID(t *testing.T) {
	s, err := NewResetSecret("01HZZZACCOUNT")
	require.NoError(t, err)

	accountID, ok := SplitResetSecret(s)
	require.True(t, ok)
	assert.Equal(t, "01HZZZACCOUNT", accountID)
	assert.Len(t, s, len("01HZZZACCOUNT")+1+64)
}

func TestSplitResetSecret_Rejects(t *testing.T) {
	for _, s := range []string{"", "noseparator", ".abc", "abc."} {
		_, ok := SplitResetSecret(s)
		assert.False(t, ok, s)
	}
}

func TestDigest_Deterministic(t *testing.T) {
	assert.Equal(t, Digest("123456"), Digest("123456"))
	assert.NotEqual(t, Digest("123456"), Digest("123457"))
	assert.Len(t, Digest("x"), 64)
}
