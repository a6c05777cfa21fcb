package caption

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSingleReplacesPlaceholder(t *testing.T) {
	got := Render("Unlock - Key -", "ABC", StylePlain, 1, 1)
	assert.Equal(t, "Unlock - ABC", got)
	assert.NotContains(t, got, Placeholder)
}

func TestRenderBatchPositionPolicy(t *testing.T) {
	tests := []struct {
		name      string
		position  int
		batchSize int
		want      string
	}{
		{"pair first is bare key", 1, 2, "ABC"},
		{"pair last carries template", 2, 2, "Unlock - ABC"},
		{"triple first is bare key", 1, 3, "ABC"},
		{"triple middle is bare key", 2, 3, "ABC"},
		{"triple last carries template", 3, 3, "Unlock - ABC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render("Unlock - Key -", "ABC", StylePlain, tt.position, tt.batchSize)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderStyles(t *testing.T) {
	assert.Equal(t, "Unlock - `ABC`", Render("Unlock - Key -", "ABC", StyleMonospace, 1, 1))
	assert.Equal(t, "Unlock - >`ABC`", Render("Unlock - Key -", "ABC", StyleQuoted, 1, 1))
}

func TestRenderStyleIdempotent(t *testing.T) {
	once := Render("Unlock - Key -", "ABC", StyleQuoted, 1, 1)
	twice := Render("Unlock - Key -", "ABC", StyleQuoted, 1, 1)
	assert.Equal(t, once, twice)
}

func TestRenderBatchUniformStyle(t *testing.T) {
	got := RenderBatch("Get it here. Key -", "XY99", StyleMonospace, 3)
	require.Len(t, got, 3)
	assert.Equal(t, "`XY99`", got[0])
	assert.Equal(t, "`XY99`", got[1])
	assert.Equal(t, "Get it here. `XY99`", got[2])
}

func TestHasPlaceholder(t *testing.T) {
	assert.True(t, HasPlaceholder("Download now! Key -"))
	assert.False(t, HasPlaceholder("Download now!"))
}

func TestExtractKey(t *testing.T) {
	key, ok := ExtractKey("new build\nKey - AB12CD")
	require.True(t, ok)
	assert.Equal(t, "AB12CD", key)

	_, ok = ExtractKey("no token here")
	assert.False(t, ok)
}
