package builder

import (
	"strings"
)

// Environment references the virtual environment directory. It doesn't own the
// directory; Clean never removes it.
type Environment struct {
	Dir      string
	Platform Platform
}

// Executable returns the interpreter inside the environment
func (e Environment) Executable() string {
	return e.Platform.Executable(e.Dir)
}

// ActivationCommand returns the command that activates the environment in a shell
func (e Environment) ActivationCommand() string {
	return e.Platform.ActivationCommand(e.Dir)
}

// Invocation is a command followed by its arguments
type Invocation []string

// InEnv returns a copy of the invocation where the host interpreter has been
// replaced with the environment's interpreter. Other commands are returned unchanged.
func (inv Invocation) InEnv(hostPython string, env Environment) Invocation {
	result := make(Invocation, len(inv))
	copy(result, inv)

	if len(result) > 0 && result[0] == hostPython {
		result[0] = env.Executable()
	}
	return result
}

func (inv Invocation) String() string {
	return strings.Join(inv, " ")
}
