package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pelletier/go-toml/v2/unstable"
	"gopkg.in/yaml.v3"
)

// Identity is the certificate identity: one certificate covering Domains.
type Identity struct {
	Domains DomainList `yaml:"domains" toml:"domains" env:"DOMAINS"`
	Email   string     `yaml:"email" toml:"email" env:"EMAIL"`
	Staging Toggle     `yaml:"staging" toml:"staging" env:"STAGING"`
}

// DomainList is the set of names on the certificate.
type DomainList []string

// ParseDomainList splits on commas and whitespace, dropping empty entries.
func ParseDomainList(s string) DomainList {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	if len(fields) == 0 {
		return nil
	}
	return DomainList(fields)
}

// String joins the list the way certbot's --domains expects it.
func (d DomainList) String() string {
	return strings.Join(d, ",")
}

// UnmarshalYAML accepts either a sequence or a single delimited string.
func (d *DomainList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*d = ParseDomainList(node.Value)
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*d = DomainList(list)
		return nil
	}
	return fmt.Errorf("line %d: domains must be a list or a string", node.Line)
}

// UnmarshalTOML accepts either an array of strings or a single delimited string.
func (d *DomainList) UnmarshalTOML(node *unstable.Node) error {
	switch node.Kind {
	case unstable.String:
		*d = ParseDomainList(string(node.Data))
		return nil
	case unstable.Array:
		var list DomainList
		it := node.Children()
		for it.Next() {
			n := it.Node()
			if n.Kind != unstable.String {
				return fmt.Errorf("domains must contain only strings, got %s", n.Kind)
			}
			list = append(list, string(n.Data))
		}
		*d = list
		return nil
	}
	return fmt.Errorf("domains must be a list or a string, got %s", node.Kind)
}

// Toggle is a flag that the environment enables with any non-empty value.
// Config files use real booleans.
type Toggle bool

// ParseToggle implements the environment rule: non-empty after trimming is true.
func ParseToggle(s string) Toggle {
	return Toggle(strings.TrimSpace(s) != "")
}

// Duration is a time.Duration that decodes from "90s"-style strings or plain seconds.
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration {
	return time.Duration(d)
}

// String formats like time.Duration.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return nil
	}
	if v, err := time.ParseDuration(s); err == nil {
		if v < 0 {
			return fmt.Errorf("duration %q must not be negative", s)
		}
		*d = Duration(v)
		return nil
	}
	// Allow plain seconds, e.g. "120"
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("cannot parse duration %q", s)
	}
	if n < 0 {
		return fmt.Errorf("duration %q must not be negative", s)
	}
	*d = Duration(time.Duration(n) * time.Second)
	return nil
}
