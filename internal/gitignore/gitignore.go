// Package gitignore matches slash-separated paths against .gitignore rules.
//
// Rules are evaluated in the order they were added and the last matching
// rule wins, so negations (!pattern) re-include what an earlier rule
// ignored. Rules loaded from a nested .gitignore only apply below the
// directory that holds it. Globs are matched with doublestar.
package gitignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Aman-CERP/semidx/internal/errors"
)

// FileName is the name of the ignore files read by LoadDir.
const FileName = ".gitignore"

// Matcher holds parsed rules. It is safe for concurrent use.
type Matcher struct {
	mu    sync.RWMutex
	rules []rule
}

type rule struct {
	glob     string
	negation bool
	// dirOnly rules (trailing slash) match directories and what is below them.
	dirOnly bool
	// anchored rules match from base; others match any single path element.
	anchored bool
	// base is the slash-separated directory of the .gitignore, "" for the root.
	base string
}

// New creates an empty Matcher.
func New() *Matcher {
	return &Matcher{}
}

// AddPattern adds a rule relative to the matcher root.
func (m *Matcher) AddPattern(pattern string) {
	m.AddPatternWithBase(pattern, "")
}

// AddPatternWithBase adds a rule that only applies below base. Blank lines,
// comments and malformed globs are ignored.
func (m *Matcher) AddPatternWithBase(pattern, base string) {
	r, ok := parse(pattern)
	if !ok {
		return
	}
	r.base = strings.Trim(base, "/")
	if r.base == "." {
		r.base = ""
	}
	m.mu.Lock()
	m.rules = append(m.rules, r)
	m.mu.Unlock()
}

// AddFromFile reads the rules of a .gitignore stored in base.
func (m *Matcher) AddFromFile(file, base string) error {
	f, err := os.Open(file)
	if err != nil {
		return errors.IOError("open "+file, err)
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		m.AddPatternWithBase(sc.Text(), base)
	}
	if err := sc.Err(); err != nil {
		return errors.IOError("read "+file, err)
	}
	return nil
}

// Len returns the number of rules.
func (m *Matcher) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rules)
}

// Match reports whether p is ignored.
func (m *Matcher) Match(p string, isDir bool) bool {
	p = strings.Trim(strings.ReplaceAll(p, "\\", "/"), "/")
	if p == "" || p == "." {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ignored := false
	for _, r := range m.rules {
		if r.matches(p, isDir) {
			ignored = !r.negation
		}
	}
	return ignored
}

func (r rule) matches(p string, isDir bool) bool {
	if r.base != "" {
		if !strings.HasPrefix(p, r.base+"/") {
			return false
		}
		p = strings.TrimPrefix(p, r.base+"/")
	}

	parts := strings.Split(p, "/")
	for i := range parts {
		// Every element but the last is a directory.
		if i == len(parts)-1 && r.dirOnly && !isDir {
			return false
		}
		subject := parts[i]
		if r.anchored {
			subject = strings.Join(parts[:i+1], "/")
		}
		if ok, _ := doublestar.Match(r.glob, subject); ok {
			return true
		}
	}
	return false
}

// parse turns one .gitignore line into a rule.
func parse(line string) (rule, bool) {
	// A trailing space survives only when escaped.
	escapedSpace := strings.HasSuffix(line, `\ `)
	line = strings.TrimRight(line, " \t\r")
	if escapedSpace {
		line = strings.TrimSuffix(line, `\`) + " "
	}
	if line == "" || strings.HasPrefix(line, "#") {
		return rule{}, false
	}

	var r rule
	switch {
	case strings.HasPrefix(line, `\#`), strings.HasPrefix(line, `\!`):
		line = line[1:]
	case strings.HasPrefix(line, "!"):
		r.negation = true
		line = line[1:]
	}

	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	if strings.Contains(line, "/") {
		r.anchored = true
		line = strings.TrimPrefix(line, "/")
	}
	if line == "" {
		return rule{}, false
	}
	if escapedSpace {
		// doublestar treats backslash as an escape; keep the space literal.
		line = strings.TrimSuffix(line, " ") + `\ `
	}
	if !doublestar.ValidatePattern(line) {
		return rule{}, false
	}
	r.glob = line
	return r, true
}

// LoadDir adds the .gitignore stored in dir, if any, with the given base.
func (m *Matcher) LoadDir(dir, base string) error {
	file := filepath.Join(dir, FileName)
	if _, err := os.Stat(file); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.IOError("stat "+file, err)
	}
	return m.AddFromFile(file, base)
}
