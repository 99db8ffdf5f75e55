//go:build !unix

package latex

import "os/exec"

func configureProcessGroup(*exec.Cmd) {}
