package sink

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openmined/sitedeploy/internal/deploy/planner"
)

func TestStaleKeys(t *testing.T) {
	plan := planner.SyncPlan{
		{Key: "index.html"},
		{Key: "app.js"},
	}
	remote := map[string]string{
		"index.html":    "aa",
		"app.js":        "bb",
		"old/gone.html": "cc",
		"zz.png":        "dd",
		versionTokenKey: "ee",
	}

	assert.Equal(t, []string{"old/gone.html", "zz.png"}, staleKeys(plan, remote))
}

func TestStaleKeysEmptyRemote(t *testing.T) {
	plan := planner.SyncPlan{{Key: "index.html"}}
	assert.Empty(t, staleKeys(plan, map[string]string{}))
}

func TestStaleKeysEmptyPlan(t *testing.T) {
	remote := map[string]string{"a": "1", versionTokenKey: "2"}
	assert.Equal(t, []string{"a"}, staleKeys(nil, remote))
}
