package postgres

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/tickerdesk/internal/domain"
)

// listQuery appends the time window, ordering and paging of opts to base.
// base must already contain a WHERE clause; timeCol names the column the
// window applies to.
func listQuery(base, timeCol, order string, opts domain.ListOpts, args []any) (string, []any) {
	var b strings.Builder
	b.WriteString(base)

	if opts.Since != nil {
		args = append(args, *opts.Since)
		fmt.Fprintf(&b, " AND %s >= $%d", timeCol, len(args))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		fmt.Fprintf(&b, " AND %s <= $%d", timeCol, len(args))
	}

	b.WriteString(" ORDER BY ")
	b.WriteString(order)

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return b.String(), args
}
