// Package attribution works out who is acting when a CLI command submits,
// approves or rejects an item without naming the actor explicitly.
package attribution

import (
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Unknown is returned when no source names the actor.
const Unknown = "unknown"

var (
	cachedName string
	once       sync.Once
)

// Reviewer returns the best available actor name, checking in order:
// CURATION_REVIEWER, USER, git config user.name. The result is cached.
func Reviewer() string {
	once.Do(func() {
		cachedName = resolve(os.Getenv, gitUserName)
	})
	return cachedName
}

// Or returns name when it is set and Reviewer() otherwise.
func Or(name string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return Reviewer()
}

func resolve(getenv func(string) string, git func() string) string {
	for _, key := range []string{"CURATION_REVIEWER", "USER"} {
		if name := strings.TrimSpace(getenv(key)); name != "" {
			return name
		}
	}
	if name := git(); name != "" {
		return name
	}
	return Unknown
}

func gitUserName() string {
	out, err := exec.Command("git", "config", "--get", "user.name").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
