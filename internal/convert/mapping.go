package convert

import (
	"fmt"
	"strings"

	"github.com/vk/tfconvert/internal/cfn"
	"github.com/vk/tfconvert/internal/fix"
	"github.com/vk/tfconvert/internal/tfmap"
	"github.com/vk/tfconvert/internal/validate"
)

// finalize fills in the per-resource mapping rows from the final output
// text. Called exactly once, when the run reaches its end.
func (c *Conversion) finalize(tpl *cfn.Template, table *tfmap.Table) {
	c.Resources = make([]ResourceMapping, 0, len(tpl.ResourceOrder))
	for _, id := range tpl.ResourceOrder {
		res := tpl.Resources[id]
		row := ResourceMapping{LogicalID: id, SourceType: res.Type}

		tfType, supported := table.ResourceType(res.Type)
		if !supported {
			row.Status = StatusUnmapped
			c.Diagnostics = append(c.Diagnostics, validate.Diagnostic{
				Severity: validate.SeverityWarning,
				Location: id,
				Message:  fmt.Sprintf("unsupported resource type %q has no mapping", res.Type),
				Subject:  id,
			})
			c.Resources = append(c.Resources, row)
			continue
		}

		address := tfType + "." + tfmap.TerraformName(id)
		switch {
		case strings.Contains(c.Output, fmt.Sprintf("resource %q %q", tfType, tfmap.TerraformName(id))):
			row.Status = StatusMapped
			row.TargetAddress = address
			row.Fixes = fixesForAddress(c.changes, address)
		case strings.Contains(c.Output, address):
			// Referenced but never declared: the model dropped the block.
			row.Status = StatusPartiallyMapped
			row.TargetAddress = address
		default:
			row.Status = StatusUnmapped
		}
		c.Resources = append(c.Resources, row)
	}
}

// fixesForAddress selects the fix rule IDs relevant to one target address.
// A rule that recorded the address among its subjects applies to it; a rule
// that recorded no subjects rewrote the document as a whole and counts for
// every resource.
func fixesForAddress(changes []fix.Change, address string) []string {
	var ids []string
	for _, change := range changes {
		if len(change.Subjects) == 0 {
			ids = append(ids, change.Rule)
			continue
		}
		for _, subject := range change.Subjects {
			if strings.Contains(subject, address) {
				ids = append(ids, change.Rule)
				break
			}
		}
	}
	return ids
}
