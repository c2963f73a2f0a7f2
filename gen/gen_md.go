package main

import (
	"bytes"
	"fmt"
	"strings"
)

const mdTableHeader = "| Environment | Flag | Description | Default |\n| - | - | - | - |\n"

// compileMd groups nested options under a heading named after their top level section.
func compileMd(options []option) []byte {
	buffer := bytes.Buffer{}

	buffer.WriteString("# Tinyprovider configuration reference\n\n")
	buffer.WriteString(mdTableHeader)

	previousSection := ""

	for _, opt := range options {
		name := strings.TrimPrefix(opt.Env, envPrefix)
		if section, _, nested := strings.Cut(name, "_"); nested && section != previousSection {
			fmt.Fprintf(&buffer, "\n## %s\n\n", strings.ToLower(section))
			buffer.WriteString(mdTableHeader)
			previousSection = section
		}
		fmt.Fprintf(&buffer, "| `%s` | `%s` | %s | `%s` |\n", opt.Env, opt.Flag, opt.Description, formatValue(opt.Value))
	}

	return buffer.Bytes()
}
