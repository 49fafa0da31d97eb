package shell

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/envswitch/envswitch/pkg/errdefs"
)

// Kind is a shell dialect family.
type Kind int

const (
	Unknown Kind = iota
	Bash
	Zsh
	Fish
	POSIXSh
)

// String returns the canonical shell name.
func (k Kind) String() string {
	switch k {
	case Bash:
		return "bash"
	case Zsh:
		return "zsh"
	case Fish:
		return "fish"
	case POSIXSh:
		return "sh"
	default:
		return "unknown"
	}
}

// ParseKind maps an explicit shell name, as given to --shell, to a Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bash":
		return Bash, nil
	case "zsh":
		return Zsh, nil
	case "fish":
		return Fish, nil
	case "sh", "posix", "dash", "ash", "ksh", "mksh":
		return POSIXSh, nil
	}
	return Unknown, fmt.Errorf("unsupported shell %q (supported: bash, zsh, fish, sh)", name)
}

// Detect classifies a shell identifier such as the value of $SHELL, a
// process name like "-zsh", or a bare name. It performs no I/O.
func Detect(identifier string) Kind {
	id := strings.ToLower(strings.TrimSpace(identifier))
	if id == "" {
		return Unknown
	}

	base := path.Base(strings.ReplaceAll(id, `\`, "/"))
	base = strings.TrimPrefix(base, "-")
	base = strings.TrimSuffix(base, ".exe")
	if k, err := ParseKind(base); err == nil {
		return k
	}

	// Versioned or wrapped names: /usr/local/bin/bash5, zsh-5.9
	switch {
	case strings.Contains(base, "zsh"):
		return Zsh
	case strings.Contains(base, "fish"):
		return Fish
	case strings.Contains(base, "bash"):
		return Bash
	}
	return Unknown
}

// Script is generated shell source.
type Script struct {
	// Text is newline-terminated source for the target shell.
	Text string

	// Kind is the dialect Text is written in.
	Kind Kind

	// Fallback is set when the requested kind was Unknown and POSIX syntax
	// was emitted instead.
	Fallback bool
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// GenerateActivation returns commands exporting every variable, one line
// per variable in key order. Fish gets set -gx; every other dialect gets
// export. An Unknown kind falls back to POSIX and sets Script.Fallback.
func GenerateActivation(vars map[string]string, kind Kind) (*Script, error) {
	script := resolve(kind)

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		if err := checkName(key); err != nil {
			return nil, err
		}
		value := vars[key]
		if script.Kind == Fish {
			fmt.Fprintf(&b, "set -gx %s %s\n", key, QuoteFish(value))
		} else {
			fmt.Fprintf(&b, "export %s=%s\n", key, QuotePOSIX(value))
		}
	}
	script.Text = b.String()
	return script, nil
}

// GenerateDeactivation returns commands removing each key from the
// environment, in sorted order.
func GenerateDeactivation(keys []string, kind Kind) (*Script, error) {
	script := resolve(kind)

	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	var b strings.Builder
	for i, key := range sorted {
		if i > 0 && key == sorted[i-1] {
			continue
		}
		if err := checkName(key); err != nil {
			return nil, err
		}
		if script.Kind == Fish {
			fmt.Fprintf(&b, "set -e %s\n", key)
		} else {
			fmt.Fprintf(&b, "unset %s\n", key)
		}
	}
	script.Text = b.String()
	return script, nil
}

func resolve(kind Kind) *Script {
	switch kind {
	case Bash, Zsh, Fish, POSIXSh:
		return &Script{Kind: kind}
	default:
		return &Script{Kind: POSIXSh, Fallback: true}
	}
}

// checkName rejects keys that would not be parsed as a single shell word.
func checkName(key string) error {
	if !identifierPattern.MatchString(key) {
		return errdefs.Newf(errdefs.KindInvalidVarName,
			"%q is not a valid shell variable name", key).WithField(key)
	}
	return nil
}

// QuotePOSIX single-quotes s for sh, bash and zsh. Inside single quotes
// every byte is literal except the quote itself, which is written as '\''.
func QuotePOSIX(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// QuoteFish single-quotes s for fish, where backslash and quote are the
// only escapes recognised inside single quotes.
func QuoteFish(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\', '\'':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// Instructions returns the rc-file snippet that wires envswitch into kind.
func Instructions(kind Kind) string {
	switch kind {
	case Fish:
		return `# Add to ~/.config/fish/config.fish:
function envswitch_use
    envswitch use $argv[1] --shell fish | source
end

function envswitch_off
    envswitch deactivate --shell fish | source
end

# Usage:
#   envswitch_use dev
`
	case Zsh, Bash, POSIXSh:
		return fmt.Sprintf(`# Add to %s:
envswitch_use() {
    eval "$(envswitch use "$1" --shell %s)"
}

envswitch_off() {
    eval "$(envswitch deactivate --shell %s)"
}

# Usage:
#   envswitch_use dev
`, rcFile(kind), kind, kind)
	default:
		return `# Your shell could not be detected; POSIX syntax is assumed.
# Evaluate the output of envswitch in your shell:
eval "$(envswitch use <config-name> --shell sh)"
`
	}
}

func rcFile(kind Kind) string {
	switch kind {
	case Zsh:
		return "~/.zshrc"
	case Bash:
		return "~/.bashrc"
	default:
		return "~/.profile"
	}
}
