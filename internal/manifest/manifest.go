// Package manifest parses the dependency manifest consumed at build time:
// one requirement per line, "name" optionally followed by bracketed extras
// and version constraints such as "uvicorn[standard]>=0.20". Blank lines
// and "#" comments
// are ignored. Parsing the same manifest always yields the same result or
// the same error; the builder refuses to start a build from a manifest
// that does not parse.
package manifest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// Constraint is a single version constraint, e.g. ">=0.100".
type Constraint struct {
	Op      string `json:"op"`
	Version string `json:"version"`
}

// Requirement is one manifest line: a package name, optional bracketed
// extras, and zero or more version constraints.
type Requirement struct {
	Name        string       `json:"name"`
	Extras      []string     `json:"extras,omitempty"`
	Constraints []Constraint `json:"constraints,omitempty"`
}

// Manifest is the parsed dependency manifest.
type Manifest struct {
	Requirements []Requirement
}

var (
	// Package name with optional extras, e.g. "uvicorn[standard]" or
	// "uvicorn[standard,http2]".
	nameRe = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)(?:\[([A-Za-z0-9._-]+(?:\s*,\s*[A-Za-z0-9._-]+)*)\])?$`)
	// Longest operators first so "<=" is not split as "<" + "=".
	constraintOps = []string{"===", "==", ">=", "<=", "!=", "~=", ">", "<"}
)

// Parse reads a manifest from r. Any malformed line is a fatal parse error
// carrying its line number; duplicate package names are rejected.
func Parse(r io.Reader) (*Manifest, error) {
	m := &Manifest{}
	seen := map[string]int{}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		req, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("manifest line %d: %w", lineNo, err)
		}

		key := strings.ToLower(req.Name)
		if first, dup := seen[key]; dup {
			return nil, fmt.Errorf("manifest line %d: duplicate requirement %q (first on line %d)", lineNo, req.Name, first)
		}
		seen[key] = lineNo
		m.Requirements = append(m.Requirements, req)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	if len(m.Requirements) == 0 {
		return nil, fmt.Errorf("manifest declares no requirements")
	}
	return m, nil
}

// ParseFile parses the manifest at path.
func ParseFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer f.Close()
	m, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func parseLine(line string) (Requirement, error) {
	// Split the name (with any extras) off at the first operator character.
	nameEnd := strings.IndexAny(line, "<>=!~")
	if nameEnd == -1 {
		return parseName(strings.TrimSpace(line))
	}

	req, err := parseName(strings.TrimSpace(line[:nameEnd]))
	if err != nil {
		return Requirement{}, err
	}

	for _, part := range strings.Split(line[nameEnd:], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return Requirement{}, fmt.Errorf("empty constraint in %q", line)
		}
		c, err := parseConstraint(part)
		if err != nil {
			return Requirement{}, err
		}
		req.Constraints = append(req.Constraints, c)
	}
	return req, nil
}

func parseName(s string) (Requirement, error) {
	m := nameRe.FindStringSubmatch(s)
	if m == nil {
		return Requirement{}, fmt.Errorf("invalid package name %q", s)
	}
	req := Requirement{Name: m[1]}
	if m[2] != "" {
		for _, e := range strings.Split(m[2], ",") {
			req.Extras = append(req.Extras, strings.TrimSpace(e))
		}
	}
	return req, nil
}

func parseConstraint(s string) (Constraint, error) {
	for _, op := range constraintOps {
		if strings.HasPrefix(s, op) {
			version := strings.TrimSpace(strings.TrimPrefix(s, op))
			if version == "" {
				return Constraint{}, fmt.Errorf("constraint %q has no version", s)
			}
			return Constraint{Op: op, Version: version}, nil
		}
	}
	return Constraint{}, fmt.Errorf("constraint %q has no recognized operator", s)
}

// String renders the requirement back to manifest-line form.
func (r Requirement) String() string {
	s := r.Name
	if len(r.Extras) > 0 {
		s += "[" + strings.Join(r.Extras, ",") + "]"
	}
	if len(r.Constraints) == 0 {
		return s
	}
	parts := make([]string, len(r.Constraints))
	for i, c := range r.Constraints {
		parts[i] = c.Op + c.Version
	}
	return s + strings.Join(parts, ",")
}
