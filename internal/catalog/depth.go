package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// Depth limits how many levels of nested directories a tree ingestion
// descends. 0 scans the root only.
type Depth int

// DepthAll descends without limit.
const DepthAll Depth = -1

// ParseDepth accepts "off" (root only), "all" (unbounded) or a non-negative
// level count.
func ParseDepth(s string) (Depth, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "":
		return 0, nil
	case "all":
		return DepthAll, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid depth %q: want off, all or a non-negative number", s)
	}
	return Depth(n), nil
}

func (d Depth) String() string {
	switch {
	case d == 0:
		return "off"
	case d < 0:
		return "all"
	}
	return strconv.Itoa(int(d))
}

// allows reports whether a directory at the given nesting level (root = 0)
// may be entered.
func (d Depth) allows(level int) bool {
	return d < 0 || level <= int(d)
}
