package cloak

import (
	"encoding"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Path represents a path on the file system.
//
// The special prefix "~/" represents the home directory of the user that the
// program is running as; it is expanded by Resolve.
type Path string

func (p Path) String() string {
	return string(p)
}

func (p *Path) Set(s string) error {
	*p = Path(s)
	return nil
}

func (p *Path) UnmarshalText(b []byte) error {
	return p.Set(string(b))
}

// Resolve returns the path with the home directory prefix expanded.
func (p Path) Resolve() (string, error) {
	s := string(p)
	if len(s) >= 2 && s[0] == '~' && s[1] == os.PathSeparator {
		home, ok := os.LookupEnv("HOME")
		if !ok {
			u, err := user.Current()
			if err != nil {
				return s, err
			}
			home = u.HomeDir
		}
		return filepath.Join(home, s[2:]), nil
	}
	return s, nil
}

// Size is a number of bytes, formatted and parsed in human readable form
// such as "64 MiB" or "1.5GB".
type Size uint64

func ParseSize(s string) (Size, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size: %w", err)
	}
	return Size(n), nil
}

func (s Size) String() string {
	return humanize.IBytes(uint64(s))
}

func (s *Size) Set(value string) error {
	n, err := ParseSize(value)
	if err != nil {
		return err
	}
	*s = n
	return nil
}

func (s Size) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Size) UnmarshalText(b []byte) error {
	return s.Set(string(b))
}

func (s *Size) UnmarshalYAML(node *yaml.Node) error {
	return s.Set(node.Value)
}

func (s Size) MarshalYAML() (any, error) {
	return s.String(), nil
}

// Duration is a time.Duration encoded in the text form of time.Duration.
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d *Duration) Set(value string) error {
	v, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	return d.Set(string(b))
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.Set(node.Value)
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

var (
	_ encoding.TextUnmarshaler = (*Path)(nil)
	_ flag.Value               = (*Path)(nil)
	_ flag.Value               = (*Size)(nil)
	_ flag.Value               = (*Duration)(nil)
	_ json.Marshaler           = Option[Size]{}
	_ yaml.Unmarshaler         = (*Option[Size])(nil)
)
