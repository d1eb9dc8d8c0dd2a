package cli

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/dmitrijs2005/lifekeeper/internal/client/domains"
	"github.com/stretchr/testify/require"
)

func TestGetSimpleText(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("hello world\n"))
	var out bytes.Buffer
	got, err := GetSimpleText(in, "Name?", &out)
	if err != nil || got != "hello world" {
		t.Fatalf("got %q, err=%v", got, err)
	}
}

func TestGetSimpleTextEOF(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("lastline"))
	var out bytes.Buffer
	got, err := GetSimpleText(in, "Name?", &out)
	if err != nil || got != "lastline" {
		t.Fatalf("got %q, err=%v", got, err)
	}
}

func TestGetPassword_Error(t *testing.T) {
	old := readPassword
	defer func() { readPassword = old }()
	readPassword = func(int) ([]byte, error) {
		return nil, errors.New("boom")
	}
	var out bytes.Buffer
	_, err := GetPassword(&out)
	if err == nil {
		t.Fatal("expected error")
	}
}

func rdr(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestGetAnswers(t *testing.T) {
	fields := []domains.Field{
		{Key: "date", Label: "Date", OnCreate: true},
		{Key: "intention", Label: "Intention"},
		{Key: "energy_level", Label: "Energy"},
	}

	tests := []struct {
		name     string
		input    string
		editing  bool
		expected map[string]string
		prompt   string
	}{
		{
			name:     "create asks every field",
			input:    "2026-03-01\nFocus\n3\n",
			expected: map[string]string{"date": "2026-03-01", "intention": "Focus", "energy_level": "3"},
			prompt:   "Date\n> ",
		},
		{
			name:     "edit skips create-only fields",
			input:    "\n4\n",
			editing:  true,
			expected: map[string]string{"intention": "", "energy_level": "4"},
			prompt:   "Intention (empty to keep)\n> ",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := GetAnswers(rdr(tc.input), fields, tc.editing, &out)
			require.NoError(t, err)
			require.Equal(t, tc.expected, got)
			require.True(t, strings.HasPrefix(out.String(), tc.prompt), out.String())
		})
	}
}

func TestGetAnswers_EOF(t *testing.T) {
	var out bytes.Buffer
	_, err := GetAnswers(rdr(""), []domains.Field{{Key: "title", Label: "Title"}}, false, &out)
	require.Error(t, err)
}

func TestConfirm(t *testing.T) {
	for input, want := range map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "\n": false, "maybe\n": false} {
		var out bytes.Buffer
		got, err := Confirm(rdr(input), "Delete?", &out)
		require.NoError(t, err)
		require.Equal(t, want, got, input)
	}
}
