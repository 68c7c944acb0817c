package logging

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogger(t *testing.T) {
	orig := Logf
	t.Cleanup(func() { Logf = orig })

	var got []string
	SetLogger(func(format string, v ...any) {
		got = append(got, fmt.Sprintf(format, v...))
	})
	Logf("pass %s wrote %d cells", "abc", 3)
	assert.Equal(t, []string{"pass abc wrote 3 cells"}, got)

	SetLogger(nil)
	Logf("muted")
	assert.Len(t, got, 1)
}
