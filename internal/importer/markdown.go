// Package importer queues a folder of Markdown notes for curation. Every
// note goes through the normal submission path, so duplicates of published
// or pending content are refused exactly as they would be for a single
// submission.
package importer

import (
	"bufio"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Note is one parsed Markdown file.
type Note struct {
	RelativePath string
	Title        string
	Body         string
	Tags         []string
	Namespaces   []string
	Author       string
}

// frontmatter is the subset of YAML keys the importer understands.
// Tags and namespaces accept a list or a comma separated string.
type frontmatter struct {
	Title      string   `yaml:"title"`
	Tags       flexList `yaml:"tags"`
	Namespace  string   `yaml:"namespace"`
	Namespaces flexList `yaml:"namespaces"`
	Author     string   `yaml:"author"`
}

type flexList []string

func (l *flexList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*l = splitList(node.Value)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*l = cleanList(items)
		return nil
	}
	return fmt.Errorf("line %d: expected a list or a string", node.Line)
}

// ParseNote parses content read from relativePath. The namespace comes from
// frontmatter, then the top-level directory, then defaultNamespace.
func ParseNote(content []byte, relativePath, defaultNamespace string) (*Note, error) {
	fm, body, err := splitFrontmatter(string(content))
	if err != nil {
		return nil, fmt.Errorf("frontmatter parse error in %s: %w", relativePath, err)
	}

	title := fm.Title
	if title == "" {
		title = extractH1(body)
	}
	if title == "" {
		title = titleFromPath(relativePath)
	}

	namespaces := cleanList(append([]string{fm.Namespace}, fm.Namespaces...))
	if len(namespaces) == 0 {
		if ns := namespaceFromPath(relativePath); ns != "" {
			namespaces = []string{ns}
		} else if defaultNamespace != "" {
			namespaces = []string{defaultNamespace}
		}
	}

	return &Note{
		RelativePath: relativePath,
		Title:        title,
		Body:         strings.TrimSpace(StripWikiLinks(body)),
		Tags:         mergeTags(fm.Tags, extractInlineTags(body)),
		Namespaces:   namespaces,
		Author:       strings.TrimSpace(fm.Author),
	}, nil
}

// splitFrontmatter separates YAML frontmatter between --- lines from the body.
// A file without a closing delimiter is all body.
func splitFrontmatter(text string) (frontmatter, string, error) {
	var fm frontmatter

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fm, "", err
	}

	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return fm, text, nil
	}

	closeIdx := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			closeIdx = i
			break
		}
	}
	if closeIdx == -1 {
		return fm, text, nil
	}

	if err := yaml.Unmarshal([]byte(strings.Join(lines[1:closeIdx], "\n")), &fm); err != nil {
		return frontmatter{}, text, fmt.Errorf("invalid YAML: %w", err)
	}
	return fm, strings.Join(lines[closeIdx+1:], "\n"), nil
}

// namespaceFromPath returns the sanitized top-level directory, or "" for
// files at the import root.
func namespaceFromPath(rel string) string {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) > 1 {
		return sanitizeSegment(parts[0])
	}
	return ""
}

func titleFromPath(rel string) string {
	base := filepath.Base(rel)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return strings.TrimSpace(name)
}

func extractH1(body string) string {
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}
	return ""
}

var inlineTagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

func extractInlineTags(body string) []string {
	var tags []string
	for _, m := range inlineTagRe.FindAllStringSubmatch(body, -1) {
		tags = append(tags, m[1])
	}
	return tags
}

// mergeTags combines tag lists, deduplicating case-insensitively and keeping
// the first spelling seen.
func mergeTags(a, b []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tag := range append(append([]string(nil), a...), b...) {
		key := strings.ToLower(tag)
		if tag == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tag)
	}
	return out
}

func splitList(s string) []string {
	return cleanList(strings.Split(s, ","))
}

func cleanList(in []string) []string {
	var out []string
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// sanitizeSegment lowercases s and turns anything but letters, digits and
// hyphens into hyphens.
func sanitizeSegment(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
