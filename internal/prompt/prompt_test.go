package prompt

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icdrive/icdrive/internal/drive"
)

func TestAsk(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"whatever\n", false},
	}

	for _, tc := range cases {
		var out bytes.Buffer
		term := NewFrom(strings.NewReader(tc.input), &out)

		got, err := term.Ask("overwrite?")
		require.NoError(t, err, "input %q", tc.input)

		assert.Equal(t, tc.want, got, "input %q", tc.input)
		assert.Contains(t, out.String(), "[y/N]")
	}
}

func TestAskAll(t *testing.T) {
	cases := []struct {
		input string
		want  drive.Answer
	}{
		{"y\n", drive.AnswerYes},
		{"n\n", drive.AnswerNo},
		{"\n", drive.AnswerNo},
		{"a\n", drive.AnswerYesAll},
		{"all\n", drive.AnswerYesAll},
		{"never\n", drive.AnswerNoAll},
	}

	for _, tc := range cases {
		term := NewFrom(strings.NewReader(tc.input), &bytes.Buffer{})

		got, err := term.AskAll("overwrite?")
		require.NoError(t, err, "input %q", tc.input)
		assert.Equal(t, tc.want, got, "input %q", tc.input)
	}
}

func TestAskAll_RepromptsOnGarbage(t *testing.T) {
	var out bytes.Buffer
	term := NewFrom(strings.NewReader("maybe\nnever\n"), &out)

	got, err := term.AskAll("overwrite?")
	require.NoError(t, err)

	assert.Equal(t, drive.AnswerNoAll, got)
	assert.Contains(t, out.String(), "please answer")
}

func TestAsk_NotInteractive(t *testing.T) {
	term := &Terminal{in: bufio.NewReader(strings.NewReader("y\n")), out: &bytes.Buffer{}}

	_, err := term.Ask("overwrite?")
	require.ErrorIs(t, err, ErrNotInteractive)

	_, err = term.AskAll("overwrite?")
	require.ErrorIs(t, err, ErrNotInteractive)
}

func TestAsk_LastLineWithoutNewline(t *testing.T) {
	term := NewFrom(strings.NewReader("y"), &bytes.Buffer{})

	got, err := term.Ask("overwrite?")
	require.NoError(t, err)
	assert.True(t, got)
}
