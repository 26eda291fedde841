//go:build !unix

package procexec

import "os/exec"

// configureProcessGroup keeps the exec default of killing the direct child.
func configureProcessGroup(*exec.Cmd) {}
