//go:build windows

package process

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// buildCommand passes the argument string through verbatim as the command
// line tail. A minimized launch goes through "start /min" because
// SysProcAttr cannot set the initial show state of the child window.
func buildCommand(req SpawnRequest) (*exec.Cmd, error) {
	if req.Minimized {
		line := `/C start "" /MIN ` + windows.EscapeArg(req.Path)
		if req.Arguments != "" {
			line += " " + req.Arguments
		}
		cmd := exec.Command("cmd.exe")
		cmd.SysProcAttr = &syscall.SysProcAttr{
			CmdLine:    "cmd.exe " + line,
			HideWindow: true,
		}
		return cmd, nil
	}

	// #nosec G204 -- executable comes from the launcher configuration.
	cmd := exec.Command(req.Path)
	line := windows.EscapeArg(req.Path)
	if req.Arguments != "" {
		line += " " + req.Arguments
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{CmdLine: line}
	return cmd, nil
}
