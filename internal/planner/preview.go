package planner

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/creatorincome/wpup/internal/fsops"
)

// StubDiff renders a unified diff of every stub the plan writes against the
// file currently at its destination.
func (p *MergePlan) StubDiff(fs fsops.FS) (string, error) {
	var sb strings.Builder
	for _, op := range p.Operations {
		if op.Type != OpWriteStub {
			continue
		}

		var current string
		exists, err := fs.Exists(op.DestPath)
		if err != nil {
			return "", fmt.Errorf("failed to check %s: %w", op.RelPath, err)
		}
		if exists {
			data, err := fs.ReadFile(op.DestPath)
			if err != nil {
				return "", fmt.Errorf("failed to read %s: %w", op.RelPath, err)
			}
			current = string(data)
		}

		text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(current),
			B:        difflib.SplitLines(string(op.Content)),
			FromFile: "a/" + op.RelPath,
			ToFile:   "b/" + op.RelPath,
			Context:  3,
		})
		if err != nil {
			return "", fmt.Errorf("failed to diff %s: %w", op.RelPath, err)
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}
