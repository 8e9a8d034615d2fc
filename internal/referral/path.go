package referral

import (
	"fmt"
	"strconv"
	"strings"
)

// Path addresses a node by child indexes from the root. The empty path is the root.
type Path []int

// ParsePath parses "0.2.1". "", "root" and "." address the root.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "root" || s == "." {
		return Path{}, nil
	}
	parts := strings.Split(s, ".")
	path := make(Path, len(parts))
	for i, part := range parts {
		idx, err := strconv.Atoi(part)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, s)
		}
		path[i] = idx
	}
	return path, nil
}

func (p Path) String() string {
	if len(p) == 0 {
		return "root"
	}
	parts := make([]string, len(p))
	for i, idx := range p {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, ".")
}

func (p Path) child(idx int) Path {
	c := make(Path, len(p)+1)
	copy(c, p)
	c[len(p)] = idx
	return c
}
