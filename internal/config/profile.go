package config

import (
	"fmt"
	"strings"
)

// OptimizationLevel maps to a single -O flag, see https://gcc.gnu.org/onlinedocs/gcc/Optimize-Options.html
type OptimizationLevel int

const (
	OptNone OptimizationLevel = iota
	OptO
	OptO0
	OptO1
	OptO2
	OptO3
	OptOs
	OptOfast
	OptOg
	OptOz
)

var optimizationLevelNames = map[OptimizationLevel]string{
	OptNone:  "None",
	OptO:     "O",
	OptO0:    "O0",
	OptO1:    "O1",
	OptO2:    "O2",
	OptO3:    "O3",
	OptOs:    "Os",
	OptOfast: "Ofast",
	OptOg:    "Og",
	OptOz:    "Oz",
}

func (o OptimizationLevel) String() string {
	if name, ok := optimizationLevelNames[o]; ok {
		return name
	}
	return fmt.Sprintf("OptimizationLevel(%d)", int(o))
}

// Flag returns the compiler flag for this level, or "" for None
func (o OptimizationLevel) Flag() string {
	if o == OptNone {
		return ""
	}
	return "-" + o.String()
}

// UnmarshalText accepts "Os", "-Os", "s", "3", "none" and so on
func (o *OptimizationLevel) UnmarshalText(text []byte) error {
	s := strings.TrimPrefix(strings.TrimSpace(string(text)), "-")
	if s == "" || strings.EqualFold(s, "none") {
		*o = OptNone
		return nil
	}
	if !strings.HasPrefix(s, "O") {
		s = "O" + s
	}
	for level, name := range optimizationLevelNames {
		if name == s {
			*o = level
			return nil
		}
	}
	return fmt.Errorf("unknown optimization level %q", string(text))
}

func (o OptimizationLevel) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Profile is the [profiles.*] section
type Profile struct {
	OptimizationLevel OptimizationLevel `toml:"optimization_level"`
}

type Profiles struct {
	Development *Profile `toml:"development"`
	Release     *Profile `toml:"release"`
}

// BuildMode selects the profile and the target/<mode> directory
type BuildMode int

const (
	Development BuildMode = iota
	Release
)

func (m BuildMode) String() string {
	if m == Release {
		return "release"
	}
	return "development"
}

// Profile returns the profile for the build mode, falling back to -O for
// development and -Ofast for release
func (c *Config) Profile(mode BuildMode) Profile {
	switch mode {
	case Release:
		if c.Profiles.Release != nil {
			return *c.Profiles.Release
		}
		return Profile{OptimizationLevel: OptOfast}
	default:
		if c.Profiles.Development != nil {
			return *c.Profiles.Development
		}
		return Profile{OptimizationLevel: OptO}
	}
}

// LinkStrategy is the kind of artifact the project links into
type LinkStrategy int

const (
	Executable LinkStrategy = iota
	StaticLibrary
	DynamicLibrary
)

func (l LinkStrategy) String() string {
	switch l {
	case StaticLibrary:
		return "static_library"
	case DynamicLibrary:
		return "dynamic_library"
	default:
		return "executable"
	}
}

// PIC reports whether objects must be compiled as position-independent code
func (l LinkStrategy) PIC() bool {
	return l == DynamicLibrary
}

func ParseLinkStrategy(s string) (LinkStrategy, error) {
	norm := strings.ToLower(strings.NewReplacer("_", "", "-", "", "!", "").Replace(strings.TrimSpace(s)))
	switch norm {
	case "", "executable", "exe", "bin":
		return Executable, nil
	case "staticlibrary", "static", "staticlib":
		return StaticLibrary, nil
	case "dynamiclibrary", "dynamic", "shared", "dynamiclib":
		return DynamicLibrary, nil
	}
	return Executable, fmt.Errorf("unknown link strategy %q", s)
}

func (l *LinkStrategy) UnmarshalText(text []byte) error {
	v, err := ParseLinkStrategy(string(text))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

func (l LinkStrategy) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}
