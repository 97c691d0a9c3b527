package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_JSONRoundTrip(t *testing.T) {
	in := `{"b":true,"n":1.5,"s":"x","z":null,"l":[1,"two",{"k":false}],"m":{"inner":[]}}`
	var v Value
	require.NoError(t, json.Unmarshal([]byte(in), &v))
	assert.Equal(t, ValueMap, v.Kind)
	assert.Equal(t, ValueNull, v.Map["z"].Kind)
	assert.Equal(t, ValueList, v.Map["l"].Kind)
	assert.Equal(t, "two", v.Map["l"].List[1].Str)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestValue_LargeIntegerSurvivesRoundTrip(t *testing.T) {
	in := `{"big":9007199254740993,"neg":-12345678901234567890,"f":0.1}`
	var v Value
	require.NoError(t, json.Unmarshal([]byte(in), &v))
	assert.Equal(t, "9007199254740993", v.Map["big"].Literal)

	out, err := json.Marshal(v.Clone())
	require.NoError(t, err)
	assert.Equal(t, `{"big":9007199254740993,"f":0.1,"neg":-12345678901234567890}`, string(out))

	var other Value
	require.NoError(t, json.Unmarshal([]byte(`{"big":9007199254740992,"neg":-12345678901234567890,"f":0.1}`), &other))
	assert.False(t, v.Equal(other), "integers differing beyond float64 precision must not compare equal")
	assert.True(t, Number(0.1).Equal(v.Map["f"]))
}

func TestValue_CloneAndEqual(t *testing.T) {
	v := Map(map[string]Value{"a": List(Number(1), Bool(true))})
	c := v.Clone()
	assert.True(t, v.Equal(c))
	c.Map["a"].List[0] = Number(2)
	assert.False(t, v.Equal(c))
	assert.Equal(t, float64(1), v.Map["a"].List[0].Number)
}

func TestFromInterface_Unsupported(t *testing.T) {
	_, err := FromInterface(struct{}{})
	assert.Error(t, err)
}
