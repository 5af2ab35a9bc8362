//go:build !windows

package process

// bringToForeground has no portable window-manager equivalent.
func bringToForeground(pid int32) bool {
	return false
}
