package resolver

import (
	"regexp"
	"strings"
)

// ImportParser returns the import paths declared in a file's content, in
// declaration order
type ImportParser func(content string) []string

var (
	// import "p"; / import "p" as X; / import * as X from "p"; / import {A} from "p";
	importRe       = regexp.MustCompile(`(?s)\bimport\s+(?:[^;"']*?\bfrom\s+)?["']([^"']+)["'][^;]*;`)
	lineCommentRe  = regexp.MustCompile(`//[^\n]*`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

// ParseImports is the default Solidity ImportParser. Comments are ignored;
// a path imported twice is reported once.
func ParseImports(content string) []string {
	stripped := blockCommentRe.ReplaceAllString(content, "")
	stripped = lineCommentRe.ReplaceAllString(stripped, "")

	seen := make(map[string]bool)
	var out []string
	for _, m := range importRe.FindAllStringSubmatch(stripped, -1) {
		p := strings.TrimSpace(m[1])
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
