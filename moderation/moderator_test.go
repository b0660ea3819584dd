package moderation

import (
	"testing"

	"chat-relay/errors"

	"github.com/stretchr/testify/require"
)

func TestNewModerator_EmptyWords(t *testing.T) {
	req := require.New(t)
	_, err := NewModerator(nil, '*')
	req.ErrorIs(err, errors.ErrEmptyWords)
}

func TestModerator_Review(t *testing.T) {
	mod, err := NewModerator([]string{"idiot", "scam"}, '*')
	require.NoError(t, err)

	t.Run("should censor a plain match", func(t *testing.T) {
		req := require.New(t)
		review := mod.Review("you are an idiot")
		req.Equal("you are an *****", review.Content)
		req.Contains(review.CensoredWords, "idiot")
	})

	t.Run("should catch leet speak evasion", func(t *testing.T) {
		req := require.New(t)
		review := mod.Review("such an 1d10t move")
		req.Equal("such an ***** move", review.Content)
	})

	t.Run("should leave clean content untouched", func(t *testing.T) {
		req := require.New(t)
		review := mod.Review("see you tomorrow")
		req.Equal("see you tomorrow", review.Content)
		req.Empty(review.CensoredWords)
	})

	t.Run("should tag a detected language", func(t *testing.T) {
		// Language detection is heuristic; the tag just has to be present,
		// not any particular value.
		req := require.New(t)
		review := mod.Review("this message is written in plain english words")
		req.NotEmpty(review.Lang)
	})
}

func TestModerator_NilPassthrough(t *testing.T) {
	req := require.New(t)
	var mod *Moderator

	review := mod.Review("anything goes")
	req.Equal("anything goes", review.Content)
	req.Empty(review.CensoredWords)
}
