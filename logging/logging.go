// Package logging builds the hclog root logger every component
// derives its named logger from.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
)

const rootName = "rockstars"

// New returns the root logger writing to w, or stderr when w is nil.
// An empty level means info.
func New(level string, json bool, w io.Writer) (hclog.Logger, error) {
	lvl := hclog.Info
	if level != "" {
		lvl = hclog.LevelFromString(level)
		if lvl == hclog.NoLevel {
			return nil, fmt.Errorf("invalid log level %q", level)
		}
	}

	if w == nil {
		w = os.Stderr
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:               rootName,
		Level:              lvl,
		Output:             w,
		JSONFormat:         json,
		JSONEscapeDisabled: true,
	}), nil
}
