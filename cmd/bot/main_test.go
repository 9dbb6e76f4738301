package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("REFERENCE_DATA_PATH", "")
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestParseCommand(t *testing.T) {
	out, err := run(t, "", "parse", "Анна Иванова F S церковь Благодать команда worship")
	require.NoError(t, err)

	assert.Contains(t, out, "Анна Иванова")
	assert.Contains(t, out, "Женский")
	assert.Contains(t, out, "Команда")
	assert.Contains(t, out, "Worship")
	assert.Contains(t, out, "source: free_text")
	assert.Contains(t, out, "fields: FullNameRU, Gender, Size, Church, Role, Department")
}

func TestParseCommandReadsStdin(t *testing.T) {
	out, err := run(t, "Анна Иванова F S", "parse")
	require.NoError(t, err)
	assert.Contains(t, out, "Анна Иванова")
}

func TestParseCommandEmptyInput(t *testing.T) {
	_, err := run(t, "  \n", "parse")
	assert.ErrorContains(t, err, "nothing to parse")
}

func TestCheckContactCommand(t *testing.T) {
	out, err := run(t, "", "check-contact", "050 123 45 67")
	require.NoError(t, err)
	assert.Equal(t, "phone: 0501234567\n", out)

	out, err = run(t, "", "check-contact", "anna@example.com")
	require.NoError(t, err)
	assert.Equal(t, "email: anna@example.com\n", out)

	_, err = run(t, "", "check-contact", "telegram")
	assert.Error(t, err)
}
