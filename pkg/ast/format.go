package ast

import (
	"fmt"
	"strings"
)

// Format renders a node as a single-line S-expression. Two trees format to
// the same string exactly when they have the same shape and literals.
func Format(node *Node) string {
	var sb strings.Builder
	format(&sb, node)
	return sb.String()
}

// FormatType renders a VarType, e.g. "(array 2 5 integer)".
func FormatType(t *VarType) string {
	if t == nil {
		return "void"
	}
	if t.Kind == TypeInteger {
		return "integer"
	}
	return fmt.Sprintf("(array %d %d %s)", t.Lower, t.Upper, FormatType(t.Elem))
}

func format(sb *strings.Builder, node *Node) {
	if node == nil {
		sb.WriteString("nil")
		return
	}

	switch node.Type {
	case Number:
		fmt.Fprintf(sb, "%d", node.Data.(NumberNode).Value)
	case String:
		fmt.Fprintf(sb, "'%s'", node.Data.(StringNode).Value)
	case Ident:
		sb.WriteString(node.Data.(IdentNode).Name)
	case Subscript:
		d := node.Data.(SubscriptNode)
		fmt.Fprintf(sb, "(index %s ", d.Name)
		format(sb, d.Index)
		sb.WriteString(")")
	case Assign:
		d := node.Data.(AssignNode)
		list(sb, ":=", d.Lhs, d.Rhs)
	case BinaryOp:
		d := node.Data.(BinaryOpNode)
		list(sb, d.Op.String(), d.Left, d.Right)
	case FuncCall:
		d := node.Data.(FuncCallNode)
		list(sb, "call "+d.Name, d.Args...)
	case If:
		d := node.Data.(IfNode)
		if d.Else == nil {
			list(sb, "if", d.Cond, d.Then)
		} else {
			list(sb, "if", d.Cond, d.Then, d.Else)
		}
	case For:
		d := node.Data.(ForNode)
		dir := "to"
		if d.Downto {
			dir = "downto"
		}
		fmt.Fprintf(sb, "(for %s ", d.Var)
		format(sb, d.Start)
		fmt.Fprintf(sb, " %s ", dir)
		format(sb, d.End)
		sb.WriteString(" ")
		format(sb, d.Body)
		sb.WriteString(")")
	case While:
		d := node.Data.(WhileNode)
		list(sb, "while", d.Cond, d.Body)
	case Break:
		sb.WriteString("(break)")
	case Exit:
		sb.WriteString("(exit)")
	case Block:
		list(sb, "begin", node.Data.(BlockNode).Stmts...)
	case VarDecl:
		d := node.Data.(VarDeclNode)
		fmt.Fprintf(sb, "(var %s %s)", d.Name, FormatType(d.Type))
	case ConstDecl:
		d := node.Data.(ConstDeclNode)
		fmt.Fprintf(sb, "(const %s %d)", d.Name, d.Value)
	case FuncDecl:
		d := node.Data.(FuncDeclNode)
		kind := "procedure"
		if d.ReturnType != nil {
			kind = "function"
		}
		fmt.Fprintf(sb, "(%s %s ", kind, d.Name)
		list(sb, "params", d.Params...)
		if d.ReturnType != nil {
			fmt.Fprintf(sb, " (returns %s)", FormatType(d.ReturnType))
		}
		if d.Body == nil {
			sb.WriteString(" forward)")
			return
		}
		sb.WriteString(" ")
		list(sb, "locals", d.Locals...)
		sb.WriteString(" ")
		format(sb, d.Body)
		sb.WriteString(")")
	case Program:
		d := node.Data.(ProgramNode)
		fmt.Fprintf(sb, "(program %s ", d.Name)
		list(sb, "decls", d.Decls...)
		sb.WriteString(" ")
		list(sb, "funcs", d.Funcs...)
		sb.WriteString(" ")
		format(sb, d.Main)
		sb.WriteString(")")
	default:
		fmt.Fprintf(sb, "(?%s)", node.Type)
	}
}

func list(sb *strings.Builder, head string, items ...*Node) {
	sb.WriteString("(")
	sb.WriteString(head)
	for _, item := range items {
		sb.WriteString(" ")
		format(sb, item)
	}
	sb.WriteString(")")
}
