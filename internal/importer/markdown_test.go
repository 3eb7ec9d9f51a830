package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNote_Frontmatter(t *testing.T) {
	src := `---
title: Rolling deploys
tags: [runbook, Deploys]
namespaces: ops, platform
author: ana
---
Drain traffic before restarting a node. See [[Load balancers|the LB notes]] and [[Health checks]].

#deploys #oncall
`
	note, err := ParseNote([]byte(src), "misc/rolling.md", "general")
	require.NoError(t, err)

	assert.Equal(t, "Rolling deploys", note.Title)
	assert.Equal(t, []string{"ops", "platform"}, note.Namespaces)
	assert.Equal(t, []string{"runbook", "Deploys", "oncall"}, note.Tags)
	assert.Equal(t, "ana", note.Author)
	assert.Contains(t, note.Body, "See the LB notes and Health checks.")
	assert.NotContains(t, note.Body, "[[")
}

func TestParseNote_Fallbacks(t *testing.T) {
	t.Run("directory namespace and H1 title", func(t *testing.T) {
		note, err := ParseNote([]byte("# Billing cycle\n\nInvoices go out on the first."), "Finance Team/billing.md", "general")
		require.NoError(t, err)
		assert.Equal(t, "Billing cycle", note.Title)
		assert.Equal(t, []string{"finance-team"}, note.Namespaces)
	})

	t.Run("root file uses default namespace and file name", func(t *testing.T) {
		note, err := ParseNote([]byte("Plain text only."), "vpn_setup-guide.md", "general")
		require.NoError(t, err)
		assert.Equal(t, "vpn setup guide", note.Title)
		assert.Equal(t, []string{"general"}, note.Namespaces)
	})

	t.Run("single namespace key", func(t *testing.T) {
		note, err := ParseNote([]byte("---\nnamespace: ops\n---\nbody"), "x/y.md", "")
		require.NoError(t, err)
		assert.Equal(t, []string{"ops"}, note.Namespaces)
	})

	t.Run("unclosed frontmatter is body", func(t *testing.T) {
		note, err := ParseNote([]byte("---\ntitle: nope\nstill body"), "a.md", "")
		require.NoError(t, err)
		assert.Contains(t, note.Body, "title: nope")
		assert.Empty(t, note.Namespaces)
	})
}

func TestParseNote_InvalidYAML(t *testing.T) {
	_, err := ParseNote([]byte("---\ntitle: [unterminated\n---\nbody"), "bad.md", "")
	assert.Error(t, err)

	_, err = ParseNote([]byte("---\ntags: {a: b}\n---\nbody"), "bad.md", "")
	assert.Error(t, err)
}

func TestStripWikiLinks(t *testing.T) {
	assert.Equal(t, "see alias and Target", StripWikiLinks("see [[Target|alias]] and [[ Target ]]"))
	assert.Equal(t, "no links", StripWikiLinks("no links"))
}
