package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"reflect"
	"strings"

	"github.com/steveiliop56/tinyprovider/internal/config"
)

const envPrefix = "TINYPROVIDER_"

// option is a leaf setting with the names the env and flag loaders know it by.
type option struct {
	Env         string
	Flag        string
	Description string
	Value       any
}

// optionPath tracks both spellings while descending into the configuration.
type optionPath struct {
	env  string
	flag string
}

func (p optionPath) field(field reflect.StructField) optionPath {
	return optionPath{
		env:  p.env + strings.ToUpper(field.Name) + "_",
		flag: p.flag + strings.ToLower(field.Name) + ".",
	}
}

func (p optionPath) mapEntry(field reflect.StructField) optionPath {
	return optionPath{
		env:  p.env + strings.ToUpper(field.Name) + "_NAME_",
		flag: p.flag + field.Tag.Get("yaml") + ".[name].",
	}
}

func main() {
	options := collectOptions()

	slog.Info("generating example env file")
	writeGenerated(".env.example", compileEnv(options))

	slog.Info("generating config reference markdown file")
	writeGenerated("config.gen.md", compileMd(options))
}

func collectOptions() []option {
	cfg := config.NewDefaultConfiguration()
	options := []option{}
	walk(reflect.TypeOf(cfg).Elem(), reflect.ValueOf(cfg).Elem(), optionPath{env: envPrefix}, &options)
	return options
}

// walk visits every leaf option of a config struct. Maps of structs are expanded once with a placeholder key.
func walk(parent reflect.Type, parentValue reflect.Value, path optionPath, options *[]option) {
	for i := 0; i < parent.NumField(); i++ {
		field := parent.Field(i)

		if field.Tag.Get("yaml") == "-" {
			continue
		}

		switch field.Type.Kind() {
		case reflect.Struct:
			walk(field.Type, parentValue.Field(i), path.field(field), options)
		case reflect.Map:
			if field.Type.Key().Kind() != reflect.String {
				slog.Info("unsupported map key type", "type", field.Type.Key().Kind())
				continue
			}
			if elem := field.Type.Elem(); elem.Kind() == reflect.Struct {
				walk(elem, reflect.New(elem).Elem(), path.mapEntry(field), options)
			}
		case reflect.Bool, reflect.String, reflect.Slice, reflect.Int:
			*options = append(*options, option{
				Env:         path.env + strings.ToUpper(field.Name),
				Flag:        "--" + path.flag + field.Tag.Get("yaml"),
				Description: field.Tag.Get("description"),
				Value:       parentValue.Field(i).Interface(),
			})
		default:
			slog.Info("unknown type", "type", field.Type.Kind())
		}
	}
}

// formatValue renders a default the way the loaders parse it back, slices are comma separated.
func formatValue(value any) string {
	if sl, ok := value.([]string); ok {
		return strings.Join(sl, ",")
	}
	return fmt.Sprint(value)
}

func writeGenerated(name string, content []byte) {
	err := os.Remove(name)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to remove generated file", "file", name, "error", err)
		os.Exit(1)
	}

	err = os.WriteFile(name, content, 0644)
	if err != nil {
		slog.Error("failed to write generated file", "file", name, "error", err)
		os.Exit(1)
	}
}
