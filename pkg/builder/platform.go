package builder

import (
	"path"
	"runtime"
	"strings"
)

// Platform formats paths inside a virtual environment
type Platform interface {
	// Executable returns the path of the interpreter inside envDir
	Executable(envDir string) string
	// ActivationCommand returns the shell command a user runs to activate envDir
	ActivationCommand(envDir string) string
}

type posixPlatform struct{}

func (posixPlatform) Executable(envDir string) string {
	return path.Join(toSlash(envDir), "bin", "python")
}

func (posixPlatform) ActivationCommand(envDir string) string {
	return "source " + path.Join(toSlash(envDir), "bin", "activate")
}

type windowsPlatform struct{}

func (windowsPlatform) Executable(envDir string) string {
	return toBackslash(envDir) + `\Scripts\python.exe`
}

func (windowsPlatform) ActivationCommand(envDir string) string {
	return toBackslash(envDir) + `\Scripts\activate.bat`
}

var (
	// POSIX is the layout used by Linux, macOS and the BSDs
	POSIX Platform = posixPlatform{}
	// Windows is the layout created by venv on Windows
	Windows Platform = windowsPlatform{}
)

// PlatformFor returns the profile for a GOOS value
func PlatformFor(goos string) Platform {
	if goos == "windows" {
		return Windows
	}

	return POSIX
}

// HostPlatform returns the profile of the running system
func HostPlatform() Platform {
	return PlatformFor(runtime.GOOS)
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

func toBackslash(p string) string {
	return strings.TrimRight(strings.ReplaceAll(p, "/", `\`), `\`)
}
