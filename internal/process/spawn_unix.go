//go:build !windows

package process

import (
	"fmt"
	"os/exec"

	"github.com/mattn/go-shellwords"
)

// buildCommand splits the opaque argument string the way a shell would.
// There is no window to minimize outside Windows, so Minimized is ignored.
func buildCommand(req SpawnRequest) (*exec.Cmd, error) {
	var args []string
	if req.Arguments != "" {
		parsed, err := shellwords.Parse(req.Arguments)
		if err != nil {
			return nil, fmt.Errorf("invalid arguments %q: %w", req.Arguments, err)
		}
		args = parsed
	}

	// #nosec G204 -- executable comes from the launcher configuration.
	return exec.Command(req.Path, args...), nil
}
