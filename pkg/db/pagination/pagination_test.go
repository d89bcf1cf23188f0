package pagination

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "1234"})
	require.NoError(t, err)

	decoded, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "1234", decoded.ID)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("%%%")
	assert.Error(t, err)
}

func TestTrim(t *testing.T) {
	items := []*int{}
	for i := 1; i <= 4; i++ {
		v := i
		items = append(items, &v)
	}
	idOf := func(v *int) string { return strconv.Itoa(*v) }

	page, info := Trim(items, 3, idOf)
	assert.Len(t, page, 3)
	assert.True(t, info.HasMore)
	assert.Equal(t, "3", info.NextPageToken)

	page, info = Trim(items, 10, idOf)
	assert.Len(t, page, 4)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}

func TestSize(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Size())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Size())
	assert.Equal(t, 7, Pagination{PageSize: 7}.Size())
}
