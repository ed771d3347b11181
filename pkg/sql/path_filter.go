package sql

import (
	"strings"

	"github.com/sitelens/sitelens-engine/pkg/models"
)

// resolvePathFilter handles the three shapes a path directive can take:
// the assignment form, the conditional block form and a bare placeholder.
func resolvePathFilter(rc *renderContext, t token) (string, bool) {
	paths := rc.ctx.Path.Values()
	op := rc.ctx.Path.Operator
	if !op.IsValid() {
		op = models.PathEquals
	}

	switch t.kind {
	case tokPathAssign:
		return pathAssignment(t.column, t.fallback, paths, op), true
	case tokBlock:
		switch {
		case len(paths) == 0:
			return "", true
		case len(paths) > 1 && op == models.PathStartsWith:
			// No agreed meaning; ValidatePathFilter reports it to the caller.
			return "", false
		default:
			return "AND " + pathAssignment(rc.engine.pathColumn, "", paths, op), true
		}
	default:
		if len(paths) != 1 {
			return "", false
		}
		return QuoteLiteral(paths[0]), true
	}
}

// pathAssignment renders `<column> = [[ {{path}} -- ]] '<fallback>'`.
func pathAssignment(column, fallback string, paths []string, op models.PathOperator) string {
	switch {
	case len(paths) == 0:
		return column + " = " + fallback
	case len(paths) == 1:
		return pathPredicate(column, paths[0], op)
	case op == models.PathStartsWith:
		preds := make([]string, len(paths))
		for i, p := range paths {
			preds[i] = pathPredicate(column, p, op)
		}
		return "(" + strings.Join(preds, " OR ") + ")"
	default:
		quoted := make([]string, len(paths))
		for i, p := range paths {
			quoted[i] = QuoteLiteral(p)
		}
		return column + " IN (" + strings.Join(quoted, ", ") + ")"
	}
}

func pathPredicate(column, path string, op models.PathOperator) string {
	if op == models.PathStartsWith {
		return column + " LIKE " + QuoteLiteral(PrefixPattern(path))
	}
	return column + " = " + QuoteLiteral(path)
}
