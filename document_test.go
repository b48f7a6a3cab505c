package rowguard_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowguard/rowguard"
)

func TestIDString(t *testing.T) {
	id := rowguard.NewID("messages", "abc-123")
	assert.Equal(t, "messages/abc-123", id.String())
	assert.False(t, id.IsZero())
	assert.True(t, rowguard.ID{}.IsZero())
}

func TestParseID(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    rowguard.ID
		wantErr bool
	}{
		{name: "simple", in: "messages/m1", want: rowguard.NewID("messages", "m1")},
		{name: "key_with_slash", in: "messages/a/b", want: rowguard.NewID("messages", "a/b")},
		{name: "missing_separator", in: "messages", wantErr: true},
		{name: "empty_table", in: "/m1", wantErr: true},
		{name: "empty_key", in: "messages/", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := rowguard.ParseID(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestDocumentRef(t *testing.T) {
	t.Run("stored_document", func(t *testing.T) {
		doc := rowguard.Document{rowguard.FieldID: "messages/m1", "body": "x"}
		id, ok := doc.Ref()
		require.True(t, ok)
		assert.Equal(t, rowguard.NewID("messages", "m1"), id)
	})

	t.Run("unstored_document", func(t *testing.T) {
		_, ok := rowguard.Document{"body": "x"}.Ref()
		assert.False(t, ok)
	})

	t.Run("malformed_id", func(t *testing.T) {
		_, ok := rowguard.Document{rowguard.FieldID: "nonsense"}.Ref()
		assert.False(t, ok)
	})
}

func TestDocumentField(t *testing.T) {
	doc := rowguard.Document{"body": "x", "absent": nil}
	v, ok := doc.Field("body")
	assert.True(t, ok)
	assert.Equal(t, "x", v)
	v, ok = doc.Field("absent")
	assert.True(t, ok)
	assert.Nil(t, v)
	_, ok = doc.Field("missing")
	assert.False(t, ok)
}

func TestStaticAuth(t *testing.T) {
	ctx := context.Background()

	id, err := rowguard.StaticAuth(nil).UserIdentity(ctx)
	require.NoError(t, err)
	assert.Nil(t, id)

	want := &rowguard.Identity{Subject: "eve", Name: "Eve"}
	id, err = rowguard.StaticAuth(want).UserIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, id)
}
