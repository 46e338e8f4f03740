package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// ParseFile reads a JSONL call log and groups it into calls. Malformed and
// empty lines are skipped. Calls come back in order of their first
// utterance; utterances within a call are ordered by timestamp, ties kept in
// file order.
func ParseFile(path string) ([]Call, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	bySession := make(map[string]*Call)
	var order []string

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var u Utterance
		if err := json.Unmarshal(scanner.Bytes(), &u); err != nil {
			continue
		}
		if u.SessionID == "" || u.Text == "" {
			continue
		}
		c, ok := bySession[u.SessionID]
		if !ok {
			c = &Call{SessionID: u.SessionID}
			bySession[u.SessionID] = c
			order = append(order, u.SessionID)
		}
		c.Utterances = append(c.Utterances, u)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	calls := make([]Call, 0, len(order))
	for _, id := range order {
		c := bySession[id]
		sort.SliceStable(c.Utterances, func(i, j int) bool {
			return c.Utterances[i].Timestamp.Before(c.Utterances[j].Timestamp)
		})
		calls = append(calls, *c)
	}
	sort.SliceStable(calls, func(i, j int) bool {
		return calls[i].Utterances[0].Timestamp.Before(calls[j].Utterances[0].Timestamp)
	})
	return calls, nil
}

// UserTurns returns the caller's side of the call.
func (c Call) UserTurns() []string {
	var out []string
	for _, u := range c.Utterances {
		if u.Role == "user" {
			out = append(out, u.Text)
		}
	}
	return out
}
