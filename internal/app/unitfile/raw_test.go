package unitfile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Parse_SectionsAndKeys(t *testing.T) {
	input := `
; a comment
[Jig]
Name = Linux Host
Jigs =
TestFile = /etc/hosts

# another comment
[Test]
Requires = a, b c
`

	raw, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	jig := raw.Section("Jig")
	require.NotNil(t, jig)
	assert.Equal(t, "Linux Host", jig["Name"])
	assert.Equal(t, "/etc/hosts", jig["TestFile"])

	test := raw.Section("Test")
	require.NotNil(t, test)
	assert.Equal(t, "a, b c", test["Requires"])
}

func Test_Parse_ColonSeparator(t *testing.T) {
	raw, err := Parse(strings.NewReader("[Logger]\nFormat: json\n"))
	require.NoError(t, err)

	v, ok := raw.Get("Logger", "Format")
	assert.True(t, ok)
	assert.Equal(t, "json", v)
}

func Test_RequireSection_Missing(t *testing.T) {
	raw, err := Parse(strings.NewReader("[Jig]\n"))
	require.NoError(t, err)

	_, err = raw.RequireSection("Test")
	assert.Error(t, err)
}

func Test_List_SplitsOnCommaAndWhitespace(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, List("a, b  c"))
	assert.Equal(t, []string{}, List(""))
}

func Test_RequireKey_MissingOrEmpty(t *testing.T) {
	sec := map[string]string{"Foo": ""}

	_, err := RequireKey(sec, "Section", "Foo")
	assert.Error(t, err)

	_, err = RequireKey(sec, "Section", "Bar")
	assert.Error(t, err)
}
