package services

import (
	"strconv"
	"strings"

	"github.com/jacksonlee411/harbor-erp/modules/pdftools/domain/types"
)

// ParsePageRanges parses a comma separated list such as "1-3, 5, 7-" against
// a document of total pages. "n" is a single page, "a-" runs to the last page
// and "-b" starts at page 1. Every token must be in bounds.
func ParsePageRanges(s string, total int) ([]types.PageRange, error) {
	if strings.TrimSpace(s) == "" {
		return nil, &types.RangeError{Reason: "no page ranges given"}
	}
	var out []types.PageRange
	for raw := range strings.SplitSeq(s, ",") {
		tok := strings.TrimSpace(raw)
		r, err := parseRangeToken(tok, total)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func parseRangeToken(tok string, total int) (types.PageRange, error) {
	bad := func(reason string) (types.PageRange, error) {
		return types.PageRange{}, &types.RangeError{Token: tok, Reason: reason}
	}
	if tok == "" {
		return bad("empty range")
	}

	startStr, endStr, isRange := strings.Cut(tok, "-")
	startStr = strings.TrimSpace(startStr)
	endStr = strings.TrimSpace(endStr)
	if isRange && startStr == "" && endStr == "" {
		return bad("range needs a start or an end")
	}

	var r types.PageRange
	var err error
	switch {
	case !isRange:
		if r.Start, err = pageNumber(startStr); err != nil {
			return bad(err.Error())
		}
		r.End = r.Start
	case startStr == "":
		r.Start = 1
		if r.End, err = pageNumber(endStr); err != nil {
			return bad(err.Error())
		}
	case endStr == "":
		if r.Start, err = pageNumber(startStr); err != nil {
			return bad(err.Error())
		}
		r.End = total
	default:
		if r.Start, err = pageNumber(startStr); err != nil {
			return bad(err.Error())
		}
		if r.End, err = pageNumber(endStr); err != nil {
			return bad(err.Error())
		}
	}

	if r.Start > r.End {
		return bad("start is after end")
	}
	if r.End > total {
		return bad("document has " + strconv.Itoa(total) + " pages")
	}
	return r, nil
}

type rangeReason string

func (r rangeReason) Error() string { return string(r) }

func pageNumber(s string) (int, error) {
	if s == "" {
		return 0, rangeReason("missing page number")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, rangeReason("not a page number")
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, rangeReason("page number too large")
	}
	if n == 0 {
		return 0, rangeReason("pages start at 1")
	}
	return n, nil
}
