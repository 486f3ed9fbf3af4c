package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/libcheck/internal/canonical"
	"github.com/roach88/libcheck/internal/status"
)

// marshalFailures converts tracker failures to canonical JSON TEXT.
func marshalFailures(failures []status.Failure) (string, error) {
	list := make([]any, len(failures))
	for i, f := range failures {
		list[i] = map[string]any{
			"seq":     f.Seq,
			"kind":    string(f.Kind),
			"message": f.Message,
		}
	}
	data, err := canonical.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("marshal failures: %w", err)
	}
	return string(data), nil
}

// unmarshalFailures parses the failures column. Empty input gives nil.
func unmarshalFailures(data string) ([]status.Failure, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var failures []status.Failure
	if err := json.Unmarshal([]byte(data), &failures); err != nil {
		return nil, fmt.Errorf("unmarshal failures: %w", err)
	}
	return failures, nil
}

func toUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
