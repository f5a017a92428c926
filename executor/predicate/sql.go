package predicate

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// ParseFilter builds a TableScanFilter from a SQL boolean expression over
// the table's columns, e.g. `o_orderdate >= '1995-01-01' AND o_orderkey < 100`.
// Supported forms: comparisons between a column and a constant, IN lists,
// BETWEEN, and AND conjunctions. OR is supported only between predicates on
// the same column.
func ParseFilter(schemaName, tableName string, columnNames []string, expr string) (*TableScanFilter, error) {
	if strings.TrimSpace(expr) == "" {
		return Empty(schemaName, tableName), nil
	}
	result, err := pg_query.Parse("SELECT * FROM t WHERE " + expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse filter expression %q: %w", expr, err)
	}
	stmts := result.Stmts
	if len(stmts) != 1 {
		return nil, fmt.Errorf("filter expression %q is not a single expression", expr)
	}
	selectStmt := stmts[0].Stmt.GetSelectStmt()
	if selectStmt == nil || selectStmt.WhereClause == nil {
		return nil, fmt.Errorf("filter expression %q has no predicate", expr)
	}

	columnIDs := make(map[string]int, len(columnNames))
	for i, name := range columnNames {
		columnIDs[strings.ToLower(name)] = i
	}
	filter := Empty(schemaName, tableName)
	if err := parseNode(selectStmt.WhereClause, columnIDs, filter); err != nil {
		return nil, fmt.Errorf("unsupported filter expression %q: %w", expr, err)
	}
	return filter, nil
}

func parseNode(node *pg_query.Node, columnIDs map[string]int, filter *TableScanFilter) error {
	if boolExpr := node.GetBoolExpr(); boolExpr != nil {
		switch boolExpr.Boolop {
		case pg_query.BoolExprType_AND_EXPR:
			for _, arg := range boolExpr.Args {
				if err := parseNode(arg, columnIDs, filter); err != nil {
					return err
				}
			}
			return nil
		case pg_query.BoolExprType_OR_EXPR:
			return parseOr(boolExpr, columnIDs, filter)
		default:
			return fmt.Errorf("NOT is not supported in scan filters")
		}
	}
	if aExpr := node.GetAExpr(); aExpr != nil {
		return parseComparison(aExpr, columnIDs, filter)
	}
	return fmt.Errorf("unsupported predicate node")
}

// parseOr accepts an OR only when every branch filters the same column, in
// which case the branches merge into that column's range/value disjunction.
func parseOr(boolExpr *pg_query.BoolExpr, columnIDs map[string]int, filter *TableScanFilter) error {
	branch := Empty(filter.SchemaName, filter.TableName)
	for _, arg := range boolExpr.Args {
		if err := parseNode(arg, columnIDs, branch); err != nil {
			return err
		}
	}
	if len(branch.ColumnFilters) != 1 {
		return fmt.Errorf("OR across different columns is not supported")
	}
	for id, cf := range branch.ColumnFilters {
		mergeColumnFilter(filter, id, cf)
	}
	return nil
}

func parseComparison(aExpr *pg_query.A_Expr, columnIDs map[string]int, filter *TableScanFilter) error {
	column, err := columnName(aExpr.Lexpr)
	if err != nil {
		return err
	}
	id, ok := columnIDs[strings.ToLower(column)]
	if !ok {
		return fmt.Errorf("column %q is not in the table", column)
	}

	switch aExpr.Kind {
	case pg_query.A_Expr_Kind_AEXPR_OP:
		op, err := operatorName(aExpr)
		if err != nil {
			return err
		}
		value, err := constValue(aExpr.Rexpr)
		if err != nil {
			return err
		}
		cf, err := comparisonFilter(column, op, value)
		if err != nil {
			return err
		}
		mergeColumnFilter(filter, id, cf)
		return nil
	case pg_query.A_Expr_Kind_AEXPR_IN:
		if op, err := operatorName(aExpr); err != nil || op != "=" {
			return fmt.Errorf("NOT IN is not supported in scan filters")
		}
		list := aExpr.Rexpr.GetList()
		if list == nil {
			return fmt.Errorf("IN subqueries are not supported in scan filters")
		}
		cf := &ColumnFilter{ColumnName: column}
		for _, item := range list.Items {
			value, err := constValue(item)
			if err != nil {
				return err
			}
			cf.DiscreteValues = append(cf.DiscreteValues, value)
		}
		mergeColumnFilter(filter, id, cf)
		return nil
	case pg_query.A_Expr_Kind_AEXPR_BETWEEN:
		list := aExpr.Rexpr.GetList()
		if list == nil || len(list.Items) != 2 {
			return fmt.Errorf("malformed BETWEEN predicate on column %q", column)
		}
		lower, err := constValue(list.Items[0])
		if err != nil {
			return err
		}
		upper, err := constValue(list.Items[1])
		if err != nil {
			return err
		}
		cf := &ColumnFilter{ColumnName: column, Ranges: []Range{{
			Lower: Bound{Value: lower, Inclusive: true},
			Upper: Bound{Value: upper, Inclusive: true},
		}}}
		mergeColumnFilter(filter, id, cf)
		return nil
	default:
		return fmt.Errorf("unsupported operator kind on column %q", column)
	}
}

func comparisonFilter(column, op, value string) (*ColumnFilter, error) {
	cf := &ColumnFilter{ColumnName: column}
	switch op {
	case "=":
		cf.DiscreteValues = []string{value}
	case "<":
		cf.Ranges = []Range{{Lower: Bound{Unbounded: true}, Upper: Bound{Value: value}}}
	case "<=":
		cf.Ranges = []Range{{Lower: Bound{Unbounded: true}, Upper: Bound{Value: value, Inclusive: true}}}
	case ">":
		cf.Ranges = []Range{{Lower: Bound{Value: value}, Upper: Bound{Unbounded: true}}}
	case ">=":
		cf.Ranges = []Range{{Lower: Bound{Value: value, Inclusive: true}, Upper: Bound{Unbounded: true}}}
	case "<>", "!=":
		cf.Ranges = []Range{
			{Lower: Bound{Unbounded: true}, Upper: Bound{Value: value}},
			{Lower: Bound{Value: value}, Upper: Bound{Unbounded: true}},
		}
	default:
		return nil, fmt.Errorf("unsupported comparison operator %q", op)
	}
	return cf, nil
}

func mergeColumnFilter(filter *TableScanFilter, id int, cf *ColumnFilter) {
	existing := filter.ColumnFilters[id]
	if existing == nil {
		filter.ColumnFilters[id] = cf
		return
	}
	existing.Ranges = append(existing.Ranges, cf.Ranges...)
	existing.DiscreteValues = append(existing.DiscreteValues, cf.DiscreteValues...)
}

func columnName(node *pg_query.Node) (string, error) {
	columnRef := node.GetColumnRef()
	if columnRef == nil {
		return "", fmt.Errorf("left side of a scan filter comparison must be a column")
	}
	fields := columnRef.Fields
	if len(fields) == 0 {
		return "", fmt.Errorf("empty column reference")
	}
	// Use the last field so qualified references like t.col resolve to col.
	str := fields[len(fields)-1].GetString_()
	if str == nil {
		return "", fmt.Errorf("unsupported column reference")
	}
	return str.Sval, nil
}

func operatorName(aExpr *pg_query.A_Expr) (string, error) {
	if len(aExpr.Name) != 1 {
		return "", fmt.Errorf("unsupported qualified operator")
	}
	str := aExpr.Name[0].GetString_()
	if str == nil {
		return "", fmt.Errorf("unsupported operator node")
	}
	return str.Sval, nil
}

func constValue(node *pg_query.Node) (string, error) {
	aConst := node.GetAConst()
	if aConst == nil {
		return "", fmt.Errorf("right side of a scan filter comparison must be a constant")
	}
	if ival := aConst.GetIval(); ival != nil {
		return fmt.Sprintf("%d", ival.Ival), nil
	}
	if fval := aConst.GetFval(); fval != nil {
		return fval.Fval, nil
	}
	if sval := aConst.GetSval(); sval != nil {
		return sval.Sval, nil
	}
	if bval := aConst.GetBoolval(); bval != nil {
		return fmt.Sprintf("%t", bval.Boolval), nil
	}
	return "", fmt.Errorf("unsupported constant type")
}
