package main

import (
	"fmt"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var dateParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseWhen resolves a natural-language or RFC3339 time expression, e.g.
// "next sunday 10am", "yesterday", "2026-08-30T10:00:00Z".
func parseWhen(expr string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, expr); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", expr); err == nil {
		return t, nil
	}

	r, err := dateParser.Parse(expr, time.Now())
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse time %q: %w", expr, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("could not understand time %q", expr)
	}
	return r.Time, nil
}
