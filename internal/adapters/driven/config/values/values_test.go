package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	assert.Equal(t, "docs", String("docs", true))
	assert.Equal(t, "", String(3, true))
	assert.Equal(t, "", String("docs", false))
}

func TestInt(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int
	}{
		{"int", 800, 800},
		{"toml int64", int64(800), 800},
		{"float truncates", 50.9, 50},
		{"env string", " 1000 ", 1000},
		{"bad string", "big", 0},
		{"bool", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Int(tt.in, true))
		})
	}
	assert.Zero(t, Int(800, false))
}

func TestFloat(t *testing.T) {
	assert.InDelta(t, 2.5, Float(2.5, true), 1e-9)
	assert.InDelta(t, 8000.0, Float(int64(8000), true), 1e-9)
	assert.InDelta(t, 4.0, Float(4, true), 1e-9)
	assert.InDelta(t, 0.5, Float("0.5", true), 1e-9)
	assert.Zero(t, Float("fast", true))
	assert.Zero(t, Float(2.5, false))
}

func TestBool(t *testing.T) {
	assert.True(t, Bool(true, true))
	assert.True(t, Bool("true", true))
	assert.True(t, Bool("1", true))
	assert.False(t, Bool("no", true))
	assert.False(t, Bool(1, true))
	assert.False(t, Bool(true, false))
}

func TestStrings(t *testing.T) {
	assert.Equal(t, []string{"rst"}, Strings([]string{"rst"}, true))
	assert.Equal(t, []string{"adoc", "org"}, Strings([]any{"adoc", 3, "org"}, true))
	assert.Equal(t, []string{".tex", ".adoc"}, Strings(".tex, .adoc,", true))
	assert.Nil(t, Strings("", true))
	assert.Nil(t, Strings(42, true))
	assert.Nil(t, Strings([]string{"rst"}, false))
}
