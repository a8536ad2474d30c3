package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PETFEEDER_"

// EnvConfigPath names the variable holding the YAML config path.
const EnvConfigPath = EnvPrefix + "CONFIG"

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) from path, or PETFEEDER_CONFIG when path is empty
//  3. env (prefix PETFEEDER_; "__" separates nested keys, e.g. PETFEEDER_PINS__GATE)
//
// A .env file in the working directory is read first when present; variables
// already set in the environment win over it.
func Load(_ context.Context, path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: .env: %v", ErrLoadConfig, err)
	}

	base := New()
	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", envKey)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps PETFEEDER_SCALE__TARE_SAMPLES to scale.tare_samples.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	s = strings.ToLower(s)
	if s == "config" {
		return ""
	}
	return strings.ReplaceAll(s, "__", ".")
}

// Dump writes the effective configuration as YAML. Durations are written in
// their string form so the output loads back unchanged; the password is masked.
func (c *Config) Dump(w io.Writer) error {
	cp := *c
	if cp.Password != "" {
		cp.Password = "********"
	}
	enc := yamlv3.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(toMap(reflect.ValueOf(cp))); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

var durationType = reflect.TypeOf(time.Duration(0))

// toMap flattens a config struct into an ordered YAML mapping keyed by koanf tags.
func toMap(v reflect.Value) *yamlv3.Node {
	node := &yamlv3.Node{Kind: yamlv3.MappingNode}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		key := f.Tag.Get("koanf")
		if key == "" {
			continue
		}
		fv := v.Field(i)
		var val *yamlv3.Node
		switch {
		case f.Type == durationType:
			val = &yamlv3.Node{Kind: yamlv3.ScalarNode, Value: time.Duration(fv.Int()).String()}
		case f.Type.Kind() == reflect.Struct:
			val = toMap(fv)
		default:
			val = &yamlv3.Node{}
			if err := val.Encode(fv.Interface()); err != nil {
				val = &yamlv3.Node{Kind: yamlv3.ScalarNode, Value: fmt.Sprint(fv.Interface())}
			}
		}
		node.Content = append(node.Content, &yamlv3.Node{Kind: yamlv3.ScalarNode, Value: key}, val)
	}
	return node
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
