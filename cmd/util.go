package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/emrgen/linkstore"
	"github.com/emrgen/linkstore/internal/server"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

func newClient() (linkstore.Client, error) {
	return linkstore.NewClient(grpcPort, grpc.WithUnaryInterceptor(server.UnaryRequestTimeInterceptor()))
}

func printField(label, value string) {
	color.Set(color.FgCyan)
	fmt.Print(label)
	color.Unset()
	fmt.Printf(": %s\n", value)
}

// checkMissingFlags checks if the required flags are set and returns ok if they are set
func checkMissingFlags(cmd *cobra.Command, flags []string) bool {
	var missingFlags []string
	var providedFlags []string
	for _, required := range flags {
		if !cmd.Flag(required).Changed {
			missingFlags = append(missingFlags, required)
		} else {
			value := cmd.Flag(required).Value.String()
			providedFlags = append(providedFlags, fmt.Sprintf("--%s=%s", required, value))
		}
	}

	if len(missingFlags) > 0 {
		var msg string
		for _, f := range missingFlags {
			msg += fmt.Sprintf("--%s ", f)
		}

		color.Red("missing: %s\n", msg)
		if len(providedFlags) > 0 {
			provided := strings.Join(providedFlags, " ")
			color.Green("provide: %s\n", provided)
		}

		cmd.Println("")

		_ = cmd.Usage()

		return true
	}

	return false
}

// parseAssignments splits key=value flags, values of the same key are merged.
func parseAssignments(values []string) (map[string][]string, error) {
	out := make(map[string][]string)
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", v)
		}
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out[key] = append(out[key], part)
			}
		}
	}

	return out, nil
}

// parseScalar reads a flag value as an integer, a float or a bool before
// falling back to a string.
func parseScalar(value string) any {
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return value
}
