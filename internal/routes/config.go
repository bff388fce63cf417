package routes

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"navkit/internal/model"
)

// HandlerSet maps handler names used in route files to lifecycle handlers.
type HandlerSet map[string]model.LifecycleHandler

// FileEntry is one route in a route file.
type FileEntry struct {
	Title   string `toml:"title" yaml:"title"`
	Icon    string `toml:"icon" yaml:"icon"`
	Path    string `toml:"path" yaml:"path"`
	Hidden  bool   `toml:"hidden" yaml:"hidden"`
	Handler string `toml:"handler" yaml:"handler"`
}

// File is the top-level shape of a route file:
//
//	[[route]]
//	title = "Visible"
//	path  = "/visible"
type File struct {
	Routes []FileEntry `toml:"route" yaml:"routes"`
}

// ConfigError reports a route file that could not be used.
type ConfigError struct {
	File    string
	Line    int // 0 when the error has no position
	Context model.LineContext
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("routes: %s:%d: %v", e.File, e.Line, e.Err)
	}
	return fmt.Sprintf("routes: %s: %v", e.File, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ErrUnknownHandler is wrapped when a route names a handler that is not in the HandlerSet.
var ErrUnknownHandler = errors.New("unknown handler")

// ErrUnsupportedFormat is wrapped for files that are neither TOML nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported route file format")

var yamlLineRe = regexp.MustCompile(`line (\d+)`)

// LoadFile reads a route file and returns its definitions in file order.
func LoadFile(path string, handlers HandlerSet) ([]model.RouteDefinition, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("routes: reading %s: %w", path, err)
	}
	return Parse(path, content, handlers)
}

// Parse decodes route file content. The format is chosen by the name's extension.
func Parse(name string, content []byte, handlers HandlerSet) ([]model.RouteDefinition, error) {
	var f File
	switch strings.ToLower(filepath.Ext(name)) {
	case ".toml":
		if _, err := toml.Decode(string(content), &f); err != nil {
			line := 0
			var perr toml.ParseError
			if errors.As(err, &perr) {
				line = perr.Position.Line
			}
			return nil, newConfigError(name, content, line, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &f); err != nil {
			line := 0
			if m := yamlLineRe.FindStringSubmatch(err.Error()); m != nil {
				line, _ = strconv.Atoi(m[1])
			}
			return nil, newConfigError(name, content, line, err)
		}
	default:
		return nil, &ConfigError{File: name, Err: ErrUnsupportedFormat}
	}

	defs := make([]model.RouteDefinition, 0, len(f.Routes))
	for i, e := range f.Routes {
		if e.Path == "" {
			return nil, &ConfigError{File: name, Err: fmt.Errorf("route %d has no path", i+1)}
		}
		def := model.RouteDefinition{
			Title:       e.Title,
			Icon:        e.Icon,
			Path:        e.Path,
			Index:       i,
			HandlerName: e.Handler,
		}
		if e.Hidden {
			def.Visibility = model.Hidden
		}
		if e.Handler != "" {
			h, ok := handlers[e.Handler]
			if !ok {
				return nil, &ConfigError{File: name, Err: fmt.Errorf("route %q: %w %q", e.Path, ErrUnknownHandler, e.Handler)}
			}
			def.Handler = h
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func newConfigError(name string, content []byte, line int, err error) *ConfigError {
	ce := &ConfigError{File: name, Line: line, Err: err}
	if line > 0 {
		ce.Context = model.GetLineContext(content, line)
	}
	return ce
}
