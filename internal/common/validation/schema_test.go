package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
  "type": "object",
  "required": ["name", "age"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "age":  {"type": "integer"}
  }
}`

func TestSchema_Validate(t *testing.T) {
	s := MustCompile(testSchema)

	tests := []struct {
		name       string
		doc        string
		valid      bool
		wantFields []string
	}{
		{name: "valid", doc: `{"name":"a","age":3}`, valid: true},
		{name: "missing both", doc: `{}`, wantFields: []string{"age", "name"}},
		{name: "wrong type", doc: `{"name":"a","age":"3"}`, wantFields: []string{"age"}},
		{name: "empty string", doc: `{"name":"","age":3}`, wantFields: []string{"name"}},
		{name: "not json", doc: `{"name":`, wantFields: []string{"(root)"}},
		{name: "array root", doc: `[]`, wantFields: []string{"(root)"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.Validate([]byte(tt.doc))
			assert.Equal(t, tt.valid, res.Valid)
			var fields []string
			for _, e := range res.Errors {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tt.wantFields, fields)
		})
	}
}

func TestSummary(t *testing.T) {
	res := MustCompile(testSchema).Validate([]byte(`{}`))
	assert.Contains(t, res.Summary(), "age: ")
	assert.Contains(t, res.Summary(), "; name: ")
}

func TestCompile_Invalid(t *testing.T) {
	_, err := Compile(`{"type": 12}`)
	require.Error(t, err)
	assert.Panics(t, func() { MustCompile(`not json`) })
}
