package admission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowList_ExactMatch(t *testing.T) {
	a, err := NewAllowList([]string{"127.0.0.1"}, false)
	require.NoError(t, err)
	assert.NoError(t, a.Check("127.0.0.1"))
}

func TestAllowList_CIDRMatch(t *testing.T) {
	a, err := NewAllowList([]string{"10.0.0.0/8"}, false)
	require.NoError(t, err)
	assert.NoError(t, a.Check("10.1.2.3"))
}

func TestAllowList_Miss(t *testing.T) {
	a, err := NewAllowList([]string{"10.0.0.0/8"}, false)
	require.NoError(t, err)
	assert.Error(t, a.Check("192.168.1.1"))
}

func TestAllowList_TestSentinel(t *testing.T) {
	a, err := NewAllowList(nil, true)
	require.NoError(t, err)
	assert.NoError(t, a.Check(testSentinelAddress))
}

func TestAllowList_TestSentinelRejectedOutsideTestProfile(t *testing.T) {
	a, err := NewAllowList(nil, false)
	require.NoError(t, err)
	assert.Error(t, a.Check(testSentinelAddress))
}
