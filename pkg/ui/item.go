package ui

import (
	"fmt"
	"strings"

	"github.com/depdeck/depdeck/pkg/project"
)

// ProjectItem wraps project.Project to implement list.Item. Marked carries
// the multi-select state for command execution.
type ProjectItem struct {
	Project project.Project
	Marked  bool
}

func (i ProjectItem) Title() string {
	return i.Project.Name
}

func (i ProjectItem) Description() string {
	return fmt.Sprintf("%s • %d deps • %s",
		i.Project.Version, len(i.Project.Dependencies), i.Project.Status())
}

func (i ProjectItem) FilterValue() string {
	var sb strings.Builder
	sb.WriteString(i.Project.Name)
	sb.WriteString(" ")
	sb.WriteString(i.Project.Path)
	for _, d := range i.Project.Dependencies {
		sb.WriteString(" ")
		sb.WriteString(d.Name)
	}
	return sb.String()
}
