package oracle

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Parse errors. Callers log and skip the offending entry.
var (
	ErrUnparseable = errors.New("unparseable oracle answer")
	ErrOutOfRange  = errors.New("index out of range")
)

// ParseVerdict reads a classifier answer under rule.
func ParseVerdict(raw string, rule VerdictRule) (bool, error) {
	compact := strings.Join(strings.Fields(raw), "")
	if compact == "" {
		return false, fmt.Errorf("%w: empty verdict", ErrUnparseable)
	}
	switch rule {
	case ExactPlus:
		return compact == "+", nil
	default:
		return strings.Contains(strings.ToLower(compact), "yes"), nil
	}
}

// SplitList splits raw on sep, trims each item, folds embedded newlines into
// spaces and drops empty items.
func SplitList(raw, sep string) []string {
	if sep == "" {
		sep = ","
	}
	parts := strings.Split(raw, sep)
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			items = append(items, p)
		}
	}
	return items
}

// ParseIndex reads entry as a zero-based index into a list of n items.
// Surrounding punctuation such as "3." or "[3]" is tolerated.
func ParseIndex(entry string, n int) (int, error) {
	trimmed := strings.Trim(strings.TrimSpace(entry), ".[]()#")
	i, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: index %q", ErrUnparseable, entry)
	}
	if i < 0 || i >= n {
		return 0, fmt.Errorf("%w: %d not in [0,%d)", ErrOutOfRange, i, n)
	}
	return i, nil
}

// ParseRankLists splits an optimized rank-dimension answer into one string
// per dimension. Lists whose cleaned text is 3 characters or shorter, and
// NoneItem parts, are discarded.
func ParseRankLists(raw string) []string {
	var lists []string
	for _, part := range strings.Split(raw, ";") {
		cleaned := strings.TrimSpace(strings.NewReplacer("\r", "", "\n", "").Replace(part))
		if len(cleaned) <= 3 || strings.EqualFold(cleaned, NoneItem) {
			continue
		}
		lists = append(lists, cleaned)
	}
	return lists
}

// SplitRanks splits one rank-dimension list into rank names.
func SplitRanks(list string) []string {
	return SplitList(list, ",")
}

// Enumerate renders items as a zero-based numbered list, one per line.
func Enumerate(items []string) string {
	var sb strings.Builder
	for i, item := range items {
		fmt.Fprintf(&sb, "%d. %s\n", i, item)
	}
	return sb.String()
}
