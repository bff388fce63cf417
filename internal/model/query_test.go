package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryValue_AppendPromotesToList(t *testing.T) {
	v := QueryString("a")
	assert.False(t, v.IsList())

	v = v.Append(QueryFlag())
	assert.True(t, v.IsList())
	assert.False(t, v.IsFlag())
	assert.Equal(t, []string{"a", "true"}, v.Strings())
	assert.Equal(t, "a", v.String())
}

func TestQueryValue_JSON(t *testing.T) {
	tests := []struct {
		name string
		in   QueryValue
		want string
	}{
		{"string", QueryString("x"), `"x"`},
		{"flag", QueryFlag(), `true`},
		{"list", QueryList("a", "b"), `["a","b"]`},
		{"mixed list", QueryString("a").Append(QueryFlag()), `["a",true]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.in)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))

			var back QueryValue
			require.NoError(t, json.Unmarshal(data, &back))
			assert.Equal(t, tt.in, back)
		})
	}

	var bad QueryValue
	assert.Error(t, json.Unmarshal([]byte(`{"a": 1}`), &bad))
}

func TestQueryValue_CloneIsIndependent(t *testing.T) {
	orig := QueryList("a")
	clone := orig.Clone()
	clone.items[0].value = "changed"
	assert.Equal(t, "a", orig.String())
}
