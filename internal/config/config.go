package config

import (
	"bytes"
	"encoding"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load reads configuration from standard locations with environment overrides.
// Search order: ~/.markovrc, $XDG_CONFIG_HOME/markov/config.toml, ~/.config/markov/config.toml
func Load() (*Config, error) {
	path := FindConfigFile()
	if path == "" {
		cfg := &Config{}
		applyEnvOverrides(cfg)
		cfg.ApplyDefaults()
		return cfg, nil
	}
	return LoadFrom(path)
}

// LoadFrom reads configuration from a specific file path.
func LoadFrom(path string) (*Config, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	cfg.ApplyDefaults()
	return cfg, nil
}

// ReadFile decodes path as written, without defaults or environment
// overrides. Unknown keys are an error.
func ReadFile(path string) (*Config, error) {
	cfg := &Config{}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}
	for _, key := range md.Keys() {
		if len(key) == 2 {
			cfg.define(key.String())
		}
	}
	return cfg, nil
}

// FindConfigFile returns the first existing config file path, or "".
func FindConfigFile() string {
	for _, p := range searchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// DefaultPath is where `config init` writes a new file.
func DefaultPath() string {
	paths := searchPaths()
	return paths[len(paths)-1]
}

func searchPaths() []string {
	home := homeDir()
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	return []string{
		filepath.Join(home, ".markovrc"),
		filepath.Join(xdgConfig, "markov", "config.toml"),
	}
}

// Save writes cfg to path as TOML, creating the parent directory. A config
// that came from ReadFile or Set writes only the keys it defines.
func Save(cfg *Config, path string) error {
	var v any = cfg
	if len(cfg.defined) > 0 {
		v = cfg.definedTable()
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(v); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// applyEnvOverrides applies MARKOV_<SECTION>_<KEY> environment variables.
// Values that do not parse are ignored.
func applyEnvOverrides(cfg *Config) {
	for _, key := range Keys() {
		if v, ok := os.LookupEnv(EnvName(key)); ok && v != "" {
			_ = cfg.Set(key, v)
		}
	}
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return "MARKOV_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Keys lists every settable "section.key" name, sorted.
func Keys() []string {
	var keys []string
	walk(reflect.ValueOf(&Config{}).Elem(), func(key string, _ reflect.Value) {
		keys = append(keys, key)
	})
	sort.Strings(keys)
	return keys
}

// Get returns the value of key formatted as a string.
func (c *Config) Get(key string) (string, error) {
	v, ok := c.field(key)
	if !ok {
		return "", fmt.Errorf("unknown config key: %s", key)
	}
	if m, ok := v.Interface().(encoding.TextMarshaler); ok {
		b, err := m.MarshalText()
		return string(b), err
	}
	if v.Kind() == reflect.Slice {
		parts := make([]string, v.Len())
		for i := range parts {
			parts[i] = fmt.Sprint(v.Index(i).Interface())
		}
		return strings.Join(parts, ","), nil
	}
	return fmt.Sprint(v.Interface()), nil
}

// Set parses value into key. Lists are comma separated.
func (c *Config) Set(key, value string) error {
	v, ok := c.field(key)
	if !ok {
		return fmt.Errorf("unknown config key: %s", key)
	}
	if err := setValue(v, key, value); err != nil {
		return err
	}
	c.define(key)
	return nil
}

// Defined reports whether key was set explicitly rather than left out.
func (c *Config) Defined(key string) bool {
	return c.defined[key]
}

func (c *Config) define(key string) {
	if c.defined == nil {
		c.defined = make(map[string]bool)
	}
	c.defined[key] = true
}

func (c *Config) definedTable() map[string]map[string]any {
	out := make(map[string]map[string]any)
	walk(reflect.ValueOf(c).Elem(), func(key string, v reflect.Value) {
		if !c.defined[key] {
			return
		}
		section, name, _ := strings.Cut(key, ".")
		if out[section] == nil {
			out[section] = make(map[string]any)
		}
		out[section][name] = v.Interface()
	})
	return out
}

func setValue(v reflect.Value, key, value string) error {
	if u, ok := v.Addr().Interface().(encoding.TextUnmarshaler); ok {
		if err := u.UnmarshalText([]byte(value)); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		return nil
	}

	switch v.Kind() {
	case reflect.String:
		v.SetString(value)
	case reflect.Int:
		i, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		v.SetInt(int64(i))
	case reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		v.SetUint(u)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		v.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		v.SetBool(b)
	case reflect.Slice:
		var items []string
		for _, s := range strings.Split(value, ",") {
			if s = strings.TrimSpace(s); s != "" {
				items = append(items, s)
			}
		}
		v.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("%s: unsupported type %s", key, v.Type())
	}
	return nil
}

func (c *Config) field(key string) (reflect.Value, bool) {
	var found reflect.Value
	walk(reflect.ValueOf(c).Elem(), func(k string, v reflect.Value) {
		if k == key {
			found = v
		}
	})
	return found, found.IsValid()
}

// walk visits every leaf field of the two-level section/key layout.
func walk(root reflect.Value, fn func(key string, v reflect.Value)) {
	rt := root.Type()
	for i := 0; i < rt.NumField(); i++ {
		section := rt.Field(i).Tag.Get("toml")
		sv := root.Field(i)
		if section == "" || sv.Kind() != reflect.Struct {
			continue
		}
		st := sv.Type()
		for j := 0; j < st.NumField(); j++ {
			name := st.Field(j).Tag.Get("toml")
			if name == "" {
				continue
			}
			fn(section+"."+name, sv.Field(j))
		}
	}
}
