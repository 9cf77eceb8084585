package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInline(t *testing.T) {
	markup := Inline(
		[]Button{{Text: "English", Unique: "lang", Data: "en"}, {Text: "Русский", Unique: "lang", Data: "ru"}},
		[]Button{{Text: "Done", Unique: "svc_done"}},
	)
	require.Len(t, markup.InlineKeyboard, 2)
	require.Len(t, markup.InlineKeyboard[0], 2)
	btn := markup.InlineKeyboard[0][1]
	assert.Equal(t, "Русский", btn.Text)
	assert.Equal(t, "lang", btn.Unique)
	assert.Equal(t, "ru", btn.Data)
	assert.Equal(t, "svc_done", markup.InlineKeyboard[1][0].Unique)
}

func TestContactRequest(t *testing.T) {
	markup := ContactRequest("📱 Share phone")
	assert.True(t, markup.OneTimeKeyboard)
	assert.True(t, markup.ResizeKeyboard)
	require.Len(t, markup.ReplyKeyboard, 1)
	require.Len(t, markup.ReplyKeyboard[0], 1)
	assert.True(t, markup.ReplyKeyboard[0][0].Contact)
	assert.Equal(t, "📱 Share phone", markup.ReplyKeyboard[0][0].Text)
}

func TestRemoveKeyboard(t *testing.T) {
	markup := RemoveKeyboard()
	assert.True(t, markup.RemoveKeyboard)
	assert.Empty(t, markup.ReplyKeyboard)
	assert.Empty(t, markup.InlineKeyboard)
}
