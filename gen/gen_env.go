package main

import (
	"bytes"
	"fmt"
)

func compileEnv(options []option) []byte {
	buffer := bytes.Buffer{}
	buffer.WriteString("# Tinyprovider example configuration\n\n")

	for _, opt := range options {
		value := formatValue(opt.Value)
		if _, isString := opt.Value.(string); isString && value != "" {
			value = fmt.Sprintf("%q", value)
		}
		fmt.Fprintf(&buffer, "# %s\n%s=%s\n\n", opt.Description, opt.Env, value)
	}

	return buffer.Bytes()
}
