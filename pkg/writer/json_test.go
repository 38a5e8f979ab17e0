package writer

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playground-engine/jobsystem/pkg/compression"
	apperrors "github.com/playground-engine/jobsystem/pkg/errors"
)

type testData struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func TestJSONWriter_Write(t *testing.T) {
	data := testData{Name: "test", Value: 42}

	t.Run("compact output", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewJSONWriter[testData]().Write(data, &buf))
		assert.Equal(t, `{"name":"test","value":42}`+"\n", buf.String())
	})

	t.Run("pretty output", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPrettyJSONWriter[testData]().Write(data, &buf))
		assert.Contains(t, buf.String(), "\n  \"name\"")

		var decoded testData
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, data, decoded)
	})
}

func TestRead_DetectsCodec(t *testing.T) {
	data := []testData{{"a", 1}, {"b", 2}}

	for _, typ := range []compression.Type{compression.TypeNone, compression.TypeGzip, compression.TypeZstd} {
		t.Run(string(typ), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, NewCompressedJSONWriter[[]testData](typ).Write(data, &buf))

			got, err := Read[[]testData](&buf)
			require.NoError(t, err)
			assert.Equal(t, data, got)
		})
	}
}

func TestWriteToFile_ReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json.zst")
	data := testData{Name: "file", Value: 7}

	require.NoError(t, NewCompressedJSONWriter[testData](compression.TypeZstd).WriteToFile(data, path))

	got, err := ReadFile[testData](path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile[testData](filepath.Join(t.TempDir(), "absent.json"))
	assert.Equal(t, apperrors.CodeNotFound, apperrors.GetErrorCode(err))
}

func TestRead_Garbage(t *testing.T) {
	_, err := Read[testData](bytes.NewReader([]byte("not json")))
	assert.Equal(t, apperrors.CodeStorageError, apperrors.GetErrorCode(err))
}
