package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external tool libconv shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	// Path is the resolved executable when Available.
	Path   string
	Detail string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = resolved
		results = append(results, status)
	}
	return results
}

// Missing returns the required (non-optional) dependencies that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			out = append(out, s)
		}
	}
	return out
}
