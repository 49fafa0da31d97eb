package commands

import (
	"encoding/json"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"

	"github.com/envswitch/envswitch/pkg/errdefs"
)

const timeLayout = "2006-01-02 15:04:05 MST"

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true).Padding(0, 1)
	labelStyle  = lipgloss.NewStyle().Bold(true).Width(16)
	titleStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderTable draws rows under headers. Rows whose first cell is in
// highlight get the active style.
func renderTable(headers []string, rows [][]string, highlight map[int]bool) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case highlight[row]:
				return activeStyle
			default:
				return cellStyle
			}
		})
	return t.Render()
}

// field renders one "label  value" line.
func field(label, value string) string {
	return labelStyle.Render(label) + value
}

// parseAssignments turns KEY=VALUE arguments into a map. Later duplicates
// win.
func parseAssignments(args []string) (map[string]string, error) {
	vars := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, errdefs.Newf(errdefs.KindFormatError, "expected KEY=VALUE, got %q", arg).
				WithField(arg)
		}
		vars[key] = value
	}
	return vars, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// isTerminal reports whether w is a terminal.
func isTerminal(w interface{}) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
