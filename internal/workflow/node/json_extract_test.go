package node

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	assert.Equal(t, `{"a":1}`, ExtractJSONObject("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `[1,2]`, ExtractJSONObject("here you go: [1,2] done"))
	assert.Equal(t, "", ExtractJSONObject("   "))
}

func TestExtractJSONArray(t *testing.T) {
	got, err := ExtractJSONArray(`Sure! {"scenes":[{"title":"a"}],"note":"x"}`, "scenes")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"title":"a"}]`, string(got))

	got, err = ExtractJSONArray(`[{"name":"Ann"}]`, "characters")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"Ann"}]`, string(got))

	got, err = ExtractJSONArray(`{"items":["harbor"]}`, "locations")
	require.NoError(t, err)
	assert.JSONEq(t, `["harbor"]`, string(got))

	_, err = ExtractJSONArray(`{"count":3}`, "shots")
	assert.Error(t, err)
	_, err = ExtractJSONArray(`no json here`, "shots")
	assert.Error(t, err)
}

func TestTruncateByRunes(t *testing.T) {
	assert.Equal(t, "港口的", TruncateByRunes("港口的清晨", 3))
	assert.Equal(t, "abc", TruncateByRunes("abc", 5))
	assert.Equal(t, "", TruncateByRunes("abc", 0))
}

func TestIsResponseFormatUnsupportedError(t *testing.T) {
	assert.True(t, IsResponseFormatUnsupportedError(errors.New("Unknown parameter: 'response_format.json_schema'")))
	assert.False(t, IsResponseFormatUnsupportedError(errors.New("context deadline exceeded")))
	assert.False(t, IsResponseFormatUnsupportedError(nil))
}
