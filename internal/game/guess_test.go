package game

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanAnswer(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases and joins", "HELLO World", "helloworld"},
		{"strips punctuation", "don't stop me now!", "dontstopmenow"},
		{"strips feat suffix", "Song Name (feat. Someone)", "songname"},
		{"strips feat dot", "Song Name feat. Someone", "songname"},
		{"removes diacritics", "Beyoncé", "beyonce"},
		{"drops whitespace", "  two   words  ", "twowords"},
		{"keeps digits", "Track 29", "track29"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, cleanAnswer(tt.in))
		})
	}
}

func TestAnswerMatches_Exact(t *testing.T) {
	require.True(t, answerMatches("Dynamite", []string{"Dynamite"}))
	require.True(t, answerMatches("dynamite", []string{"Dynamite"}))
	require.False(t, answerMatches("TNT", []string{"Dynamite"}))
}

func TestAnswerMatches_Aliases(t *testing.T) {
	names := []string{"Spring Day", "Bomh나ru"}
	require.True(t, answerMatches("spring day", names))
}

func TestAnswerMatches_TypoTolerance(t *testing.T) {
	// One typo allowed from five characters.
	require.True(t, answerMatches("dynamit", []string{"Dynamite"}))
	// Two typos allowed from ten characters.
	require.True(t, answerMatches("bohemian rapsod", []string{"Bohemian Rhapsody"}))
	// Short names get no tolerance.
	require.False(t, answerMatches("idl", []string{"idol"}))
	require.True(t, answerMatches("idol", []string{"idol"}))
}

func TestAnswerMatches_EmptyGuess(t *testing.T) {
	require.False(t, answerMatches("", []string{"Dynamite"}))
	require.False(t, answerMatches("   ", []string{"Dynamite"}))
}

func TestTypoTolerance(t *testing.T) {
	require.Equal(t, 0, typoTolerance(3))
	require.Equal(t, 1, typoTolerance(5))
	require.Equal(t, 1, typoTolerance(9))
	require.Equal(t, 2, typoTolerance(10))
	require.Equal(t, 2, typoTolerance(30))
}
