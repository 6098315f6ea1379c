package commands

import (
	"fmt"

	"github.com/zoneremote/zoneremote-go/pkg/log"
)

// RunFilter copies the events of path selected by c into a new log file at
// output and returns how many were copied.
func RunFilter(path, output string, c Criteria) (int, error) {
	r, err := openReader(path, c)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	out, err := log.NewFileLogger(output)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	for event, err := range r.All() {
		if err != nil {
			out.Close()
			return out.Written(), fmt.Errorf("failed to read event: %w", err)
		}
		out.Log(event)
	}
	if err := out.Close(); err != nil {
		return out.Written(), err
	}
	return out.Written(), out.Err()
}
