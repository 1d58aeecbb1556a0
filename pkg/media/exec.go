package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// expand substitutes {name} placeholders in a command template.
func expand(args []string, vars map[string]string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		for k, v := range vars {
			arg = strings.ReplaceAll(arg, "{"+k+"}", v)
		}
		out[i] = arg
	}
	return out
}

func run(ctx context.Context, args []string) ([]byte, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return nil, fmt.Errorf("empty command")
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 512 {
			msg = msg[len(msg)-512:]
		}
		return nil, fmt.Errorf("%s: %w: %s", args[0], err, msg)
	}
	return stdout.Bytes(), nil
}
