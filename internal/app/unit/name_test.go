package unit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_FromPath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected Name
		ok       bool
	}{
		{"jig", "/etc/jigs/linux.jig", Name{ID: "linux", Kind: KindJig}, true},
		{"scenario", "smoke.scenario", Name{ID: "smoke", Kind: KindScenario}, true},
		{"test", "mytest.test", Name{ID: "mytest", Kind: KindTest}, true},
		{"interface", "tui.interface", Name{ID: "tui", Kind: KindInterface}, true},
		{"logger", "file.logger", Name{ID: "file", Kind: KindLogger}, true},
		{"trigger", "button.trigger", Name{ID: "button", Kind: KindTrigger}, true},
		{"unknown extension", "notes.txt", Name{}, false},
		{"no extension", "README", Name{}, false},
		{"empty stem", ".jig", Name{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FromPath(tt.path)
			assert.Equal(t, tt.ok, ok)

			if tt.ok {
				assert.Equal(t, tt.expected, got)
			}
		})
	}
}

func Test_Less_OrdersByKindThenID(t *testing.T) {
	names := []Name{
		{ID: "b", Kind: KindTest},
		{ID: "a", Kind: KindTest},
		{ID: "z", Kind: KindJig},
		{ID: "a", Kind: KindScenario},
	}

	SortNames(names)

	expected := []Name{
		{ID: "z", Kind: KindJig},
		{ID: "a", Kind: KindScenario},
		{ID: "a", Kind: KindTest},
		{ID: "b", Kind: KindTest},
	}

	assert.Equal(t, expected, names)
}

func Test_String(t *testing.T) {
	n := Name{ID: "linux", Kind: KindJig}
	assert.Equal(t, "linux.jig", n.String())
}

func Test_KindFromExtension_CaseInsensitive(t *testing.T) {
	k, ok := KindFromExtension(".JIG")
	assert.True(t, ok)
	assert.Equal(t, KindJig, k)

	_, ok = KindFromExtension("unknown")
	assert.False(t, ok)
}
