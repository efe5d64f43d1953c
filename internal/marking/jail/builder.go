package jail

import (
	"fmt"
	"strings"
)

// Default sandbox invocation. The entrypoint runs inside firejail with no
// network and a throwaway private home.
const DefaultCommand = "firejail"

// DefaultArgs returns the default sandbox arguments.
func DefaultArgs() []string {
	return []string{"--quiet", "--private", "--net=none"}
}

// Builder assembles the sandbox command line for a jail client.
type Builder struct {
	command    string
	args       []string
	entrypoint string
}

// NewBuilder configures a builder for the given entrypoint binary or script,
// with the firejail defaults.
func NewBuilder(entrypoint string) *Builder {
	return &Builder{
		command:    DefaultCommand,
		args:       DefaultArgs(),
		entrypoint: entrypoint,
	}
}

// Command overrides the sandbox command.
func (b *Builder) Command(command string) *Builder {
	b.command = command
	return b
}

// Args replaces the sandbox arguments.
func (b *Builder) Args(args []string) *Builder {
	b.args = args
	return b
}

// Arg appends one sandbox argument.
func (b *Builder) Arg(arg string) *Builder {
	b.args = append(b.args, arg)
	return b
}

// Build spawns the jailed process and returns a connected client.
func (b *Builder) Build() (*Client, error) {
	if strings.TrimSpace(b.command) == "" {
		return nil, fmt.Errorf("jail command is required")
	}
	if strings.TrimSpace(b.entrypoint) == "" {
		return nil, fmt.Errorf("jail entrypoint is required")
	}
	return spawn(b.command, b.args, b.entrypoint)
}
