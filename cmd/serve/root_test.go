package serve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUniverses(t *testing.T) {
	universes, err := parseUniverses(" 1, 2,,30 ")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 30}, universes)

	_, err = parseUniverses("")
	assert.Error(t, err)

	_, err = parseUniverses("1,two")
	assert.Error(t, err)
}
