package protocol

import "strings"

// ParseArgs splits a request line on ASCII whitespace. The first token is the
// command name; ok is false when the line holds no tokens at all.
func ParseArgs(line string) (name string, params []string, ok bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil, false
	}
	if len(fields) > 1 {
		params = fields[1:]
	}
	return fields[0], params, true
}

// SplitGroups splits params at every occurrence of sep. Empty groups are
// kept so callers can apply their own arity checks.
func SplitGroups(params []string, sep string) [][]string {
	var groups [][]string
	cur := []string{}
	for _, p := range params {
		if p == sep {
			groups = append(groups, cur)
			cur = []string{}
			continue
		}
		cur = append(cur, p)
	}
	return append(groups, cur)
}
