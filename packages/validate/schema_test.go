package validate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/webservice/packages/webservice"
)

const userSchema = `{
  "type": "object",
  "required": ["id", "name"],
  "properties": {
    "id": {"type": "integer"},
    "name": {"type": "string", "minLength": 1}
  }
}`

func TestSchema_Body(t *testing.T) {
	s, err := Compile([]byte(userSchema))
	require.NoError(t, err)

	tests := []struct {
		name       string
		body       string
		violations int
	}{
		{"valid", `{"id":1,"name":"ada"}`, 0},
		{"missing field", `{"id":1}`, 1},
		{"wrong types", `{"id":"1","name":""}`, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Body([]byte(tt.body))
			if tt.violations == 0 {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Len(t, verr.Violations, tt.violations)
			assert.Contains(t, err.Error(), "schema validation failed")
		})
	}
}

func TestSchema_NotJSON(t *testing.T) {
	s, err := Compile([]byte(userSchema))
	require.NoError(t, err)
	assert.ErrorIs(t, s.Body([]byte("<xml/>")), ErrNotJSON)
}

func TestSchema_AtPath(t *testing.T) {
	s, err := Compile([]byte(userSchema), AtPath("data"))
	require.NoError(t, err)

	assert.NoError(t, s.Body([]byte(`{"data":{"id":1,"name":"ada"},"meta":{}}`)))

	var verr *ValidationError
	require.ErrorAs(t, s.Body([]byte(`{"meta":{}}`)), &verr)
	assert.Equal(t, []string{"data: value is missing"}, verr.Violations)
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile([]byte(`{"type": 12}`))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user.schema.json")
	require.NoError(t, os.WriteFile(path, []byte(userSchema), 0644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.NoError(t, s.Body([]byte(`{"id":2,"name":"grace"}`)))

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestSchema_Result(t *testing.T) {
	s, err := Compile([]byte(userSchema))
	require.NoError(t, err)

	statusErr := &webservice.HTTPStatusError{Status: 500}
	assert.ErrorIs(t, s.Result(&webservice.Result{Err: statusErr}), statusErr)
	assert.NoError(t, s.Result(&webservice.Result{Body: []byte(`{"id":1,"name":"x"}`)}))
	assert.Error(t, s.Result(nil))
}
