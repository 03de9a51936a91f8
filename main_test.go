package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCompile_Select(t *testing.T) {
	out, err := runCommand(t, "", "compile", "-c", "person")
	require.NoError(t, err)
	assert.Equal(t, "SELECT *, META(person).id FROM default person", out)

	options := writeFile(t, "options.json", `{"sort": {"age": -1}, "limit": 10}`)
	out, err = runCommand(t, "", "compile", "-c", "person", "-o", options)
	require.NoError(t, err)
	assert.Equal(t, "SELECT *, META(person).id FROM default person WHERE META(person).id LIKE \"person::%\" ORDER BY person.`age` DESC LIMIT 10", out)
}

func TestCompile_Stdin(t *testing.T) {
	out, err := runCommand(t, `{"limit": 1}`, "compile", "-c", "person", "-n", "travel", "-o", "-")
	require.NoError(t, err)
	assert.Equal(t, `SELECT *, META(person).id FROM travel person WHERE META(person).id LIKE "person::%" LIMIT 1`, out)
}

func TestCompile_Delete(t *testing.T) {
	out, err := runCommand(t, "", "compile", "-c", "person", "--delete")
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM default person WHERE META(person).id LIKE "person::%" RETURNING person, META(person).id`, out)
}

func TestCompile_Errors(t *testing.T) {
	_, err := runCommand(t, "", "compile")
	assert.Error(t, err)

	_, err = runCommand(t, "", "compile", "-c", "person", "-o", filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "failed to read options")

	values := writeFile(t, "values.json", `[{"age": 1}, {"age": 2}]`)
	_, err = runCommand(t, "", "compile", "-c", "person", "--values", values)
	assert.ErrorContains(t, err, "exactly one values object")
}

func TestExec_RejectsUnknownOperation(t *testing.T) {
	_, err := runCommand(t, "", "exec", "truncate", "-c", "person")
	assert.Error(t, err)
}

func TestReadValues(t *testing.T) {
	values, err := readValues(writeFile(t, "one.json", `{"name": "Tomas"}`))
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, "Tomas", values[0]["name"])

	values, err = readValues(writeFile(t, "many.json", `[{"name": "a"}, {"name": "b"}]`))
	require.NoError(t, err)
	assert.Len(t, values, 2)

	_, err = readValues(writeFile(t, "bad.json", `"text"`))
	assert.Error(t, err)

	_, err = readValues("")
	assert.Error(t, err)
}
