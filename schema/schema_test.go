package schema_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowguard/rowguard/schema"
)

const sampleYAML = `
tables:
  - name: messages
    indexes:
      - name: by_author
        fields: [author]
      - name: by_author_n
        fields: [author, n]
    searchIndexes:
      - name: search_body
        field: body
  - name: users
`

func TestParse(t *testing.T) {
	s, err := schema.Parse([]byte(sampleYAML))
	require.NoError(t, err)
	require.Len(t, s.Tables, 2)

	msgs := s.Table("messages")
	require.NotNil(t, msgs)
	idx := msgs.Index("by_author_n")
	require.NotNil(t, idx)
	assert.Equal(t, []string{"author", "n"}, idx.Fields)
	assert.Nil(t, msgs.Index("search_body"))

	search := msgs.SearchIndex("search_body")
	require.NotNil(t, search)
	assert.Equal(t, "body", search.Field)

	assert.Nil(t, s.Table("absent"))
}

func TestLoad(t *testing.T) {
	s, err := schema.Load(strings.NewReader(sampleYAML))
	require.NoError(t, err)
	assert.NotNil(t, s.Table("users"))
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "malformed_yaml",
			yaml: "tables: [",
			want: "decoding",
		},
		{
			name: "empty_table_name",
			yaml: "tables:\n  - indexes: []\n",
			want: "empty name",
		},
		{
			name: "duplicate_table",
			yaml: "tables:\n  - name: a\n  - name: a\n",
			want: "duplicate table",
		},
		{
			name: "index_without_fields",
			yaml: "tables:\n  - name: a\n    indexes:\n      - name: by_x\n",
			want: "no fields",
		},
		{
			name: "duplicate_index_name",
			yaml: "tables:\n  - name: a\n    indexes:\n      - name: by_x\n        fields: [x]\n    searchIndexes:\n      - name: by_x\n        field: x\n",
			want: "duplicate index",
		},
		{
			name: "search_index_without_field",
			yaml: "tables:\n  - name: a\n    searchIndexes:\n      - name: s\n",
			want: "no field",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := schema.Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
