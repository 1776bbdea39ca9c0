package pyexec

import "strings"

// DefaultAllowedModules lists the Python modules importable inside the
// sandbox. Submodules of listed modules are importable as well.
var DefaultAllowedModules = []string{
	"pandas", "numpy", "matplotlib", "seaborn",
	"sklearn", "datetime", "json", "math",
	"random", "re", "collections", "itertools",
	"functools", "statistics",
}

// DefaultBlockedModules lists the Python modules whose import or
// attribute use is rejected before any code runs.
var DefaultBlockedModules = []string{
	"os", "sys", "subprocess", "socket", "requests",
	"urllib", "http", "ftplib", "telnetlib", "smtplib",
	"ssl", "pathlib", "shutil", "tempfile", "io",
	"pickle", "importlib", "__builtins__",
}

// dangerousFuncs are dynamic-evaluation constructs the scan rejects
// regardless of the module lists.
var dangerousFuncs = []string{"eval(", "exec(", "__import__("}

// scanCode statically checks a snippet against the blocked-module list
// and returns one finding per violation. Matching is plain substring
// search over the raw source, so imports in strings or comments are
// rejected too.
func scanCode(code string, blocked []string) []string {
	var issues []string

	for _, module := range blocked {
		if strings.Contains(code, "import "+module) || strings.Contains(code, "from "+module) {
			issues = append(issues, "Blocked module import: "+module)
		}
	}

	for _, fn := range dangerousFuncs {
		if strings.Contains(code, fn) {
			issues = append(issues, "Blocked function usage: "+strings.TrimSuffix(fn, "("))
		}
	}

	for _, module := range blocked {
		if strings.Contains(code, module+".") {
			issues = append(issues, "Blocked attribute access on module: "+module)
		}
	}

	return issues
}
