package sqldoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	q := `SELECT v FROM t WHERE a = ? AND b = ?`
	assert.Equal(t, q, rebind(SQLite, q))
	assert.Equal(t, q, rebind(MySQL, q))
	assert.Equal(t, `SELECT v FROM t WHERE a = $1 AND b = $2`, rebind(Postgres, q))
}

func TestForUpdate(t *testing.T) {
	assert.Equal(t, "", forUpdate(SQLite))
	assert.Equal(t, " FOR UPDATE", forUpdate(MySQL))
	assert.Equal(t, " FOR UPDATE", forUpdate(Postgres))
}

func TestJSONOrderExpr(t *testing.T) {
	tests := []struct {
		dialect string
		want    string
	}{
		{SQLite, "json_extract(v, '$.author')"},
		{MySQL, "JSON_EXTRACT(v, '$.author')"},
		{Postgres, "v -> 'author'"},
	}
	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			got, err := jsonOrderExpr(tt.dialect, "author")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("rejects_non_identifier", func(t *testing.T) {
		_, err := jsonOrderExpr(SQLite, "a'); DROP TABLE x; --")
		require.Error(t, err)
	})
}
