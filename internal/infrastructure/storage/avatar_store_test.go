package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectPath(t *testing.T) {
	p := ObjectPath("user-1", "Me.PNG")

	assert.True(t, strings.HasPrefix(p, "avatars/user-1/"))
	assert.True(t, strings.HasSuffix(p, ".png"))
	assert.NotEqual(t, p, ObjectPath("user-1", "Me.PNG"))
}
