package service

import (
	"strings"

	"github.com/damoang/angple-collab/internal/domain"
	"github.com/pmezard/go-difflib/difflib"
)

// splitLines splits text into lines; empty text has no lines
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// DiffLines computes a line diff of a into b as spans of unchanged,
// removed and added lines. Adjacent spans never share an op.
func DiffLines(a, b string) []domain.DiffSpan {
	from, to := splitLines(a), splitLines(b)
	// autojunk off: popular lines in long bodies must still match
	matcher := difflib.NewMatcherWithJunk(from, to, false, nil)

	var spans []domain.DiffSpan
	appendSpan := func(op domain.DiffOp, lines []string) {
		if len(lines) == 0 {
			return
		}
		if n := len(spans); n > 0 && spans[n-1].Op == op {
			spans[n-1].Lines = append(spans[n-1].Lines, lines...)
			return
		}
		spans = append(spans, domain.DiffSpan{Op: op, Lines: append([]string(nil), lines...)})
	}

	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'e':
			appendSpan(domain.DiffUnchanged, from[op.I1:op.I2])
		case 'd':
			appendSpan(domain.DiffRemoved, from[op.I1:op.I2])
		case 'i':
			appendSpan(domain.DiffAdded, to[op.J1:op.J2])
		case 'r':
			appendSpan(domain.DiffRemoved, from[op.I1:op.I2])
			appendSpan(domain.DiffAdded, to[op.J1:op.J2])
		}
	}
	return spans
}

// compareField builds the comparison of one field between two snapshots
func compareField(field string, from, to domain.Snapshot) domain.FieldComparison {
	a, b := from.Field(field), to.Field(field)
	cmp := domain.FieldComparison{Field: field, Changed: a != b}

	if field != domain.FieldBody {
		if cmp.Changed {
			cmp.From, cmp.To = a, b
		}
		return cmp
	}

	cmp.Spans = DiffLines(a, b)
	for _, span := range cmp.Spans {
		switch span.Op {
		case domain.DiffAdded:
			cmp.Added += len(span.Lines)
		case domain.DiffRemoved:
			cmp.Removed += len(span.Lines)
		}
	}
	return cmp
}
