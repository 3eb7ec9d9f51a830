package attribution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func env(vals map[string]string) func(string) string {
	return func(k string) string { return vals[k] }
}

func TestResolve(t *testing.T) {
	noGit := func() string { return "" }

	assert.Equal(t, "ana", resolve(env(map[string]string{"CURATION_REVIEWER": "ana", "USER": "root"}), noGit))
	assert.Equal(t, "root", resolve(env(map[string]string{"CURATION_REVIEWER": "  ", "USER": "root"}), noGit))
	assert.Equal(t, "Ana Souza", resolve(env(nil), func() string { return "Ana Souza" }))
	assert.Equal(t, Unknown, resolve(env(nil), noGit))
}

func TestOr(t *testing.T) {
	assert.Equal(t, "explicit", Or(" explicit "))
	assert.NotEmpty(t, Or(""))
}
