package puzzle

import (
	"bufio"
	"strconv"
	"strings"

	"qter/internal/intern"
)

// Load parses a puzzle definition file (spec.md §6): four sections —
// COLORS, GENERATORS, DERIVED, PRESETS — each introduced by its header
// line and running until the next header or EOF. Blank lines are
// skipped, and the order of the sections is not checked. The facelet
// count is the largest facelet index in GENERATORS plus one. COLORS
// lines are collected but never parsed (the compiler core does not
// render facelets); everything else feeds a Builder.
func Load(id, text string, pool *intern.Pool) (*Puzzle, error) {
	sections := splitSections(text)
	// COLORS lines are collected but unused by the compiler core: it
	// never renders a facelet, only reasons about it.

	genLines, ok := sections["GENERATORS"]
	if !ok || len(genLines) == 0 {
		return nil, newMalformed("puzzle %q has no GENERATORS section", id)
	}

	faceletCount, err := inferFaceletCount(genLines)
	if err != nil {
		return nil, err
	}

	b := NewBuilder(id, faceletCount, pool)

	for _, line := range genLines {
		name, cycles, err := parseGeneratorLine(line)
		if err != nil {
			return nil, err
		}
		if err := b.AddGenerator(name, cycles); err != nil {
			return nil, err
		}
	}

	for _, line := range sections["DERIVED"] {
		name, refs, err := parseDerivedLine(line)
		if err != nil {
			return nil, err
		}
		if err := b.AddDerived(name, refs); err != nil {
			return nil, err
		}
	}

	built, err := b.Build()
	if err != nil {
		return nil, err
	}
	b2 := &Builder{
		id: id, faceletCount: faceletCount,
		generators: built.generators, genOrder: built.genOrder,
		derived: built.derived, pool: pool,
	}
	for _, line := range sections["PRESETS"] {
		orders, algoTexts, shared, hasShared, err := parsePresetLine(line)
		if err != nil {
			return nil, err
		}
		if err := b2.AddPreset(orders, algoTexts, shared, hasShared); err != nil {
			return nil, err
		}
	}
	built.Presets = b2.presets
	return built, nil
}

func splitSections(text string) map[string][]string {
	sections := make(map[string][]string)
	var current string
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if isSectionHeader(trimmed) {
			current = trimmed
			continue
		}
		sections[current] = append(sections[current], trimmed)
	}
	return sections
}

func isSectionHeader(s string) bool {
	switch s {
	case "COLORS", "GENERATORS", "DERIVED", "PRESETS":
		return true
	}
	return false
}

func inferFaceletCount(genLines []string) (int, error) {
	max := -1
	for _, line := range genLines {
		_, cycles, err := parseGeneratorLine(line)
		if err != nil {
			return 0, err
		}
		for _, cyc := range cycles {
			for _, f := range cyc {
				if f > max {
					max = f
				}
			}
		}
	}
	return max + 1, nil
}

// parseGeneratorLine parses "name = (a, b, c) (d, e)".
func parseGeneratorLine(line string) (string, [][]int, error) {
	name, rest, ok := splitOnce(line, "=")
	if !ok {
		return "", nil, newMalformed("malformed GENERATORS line %q", line)
	}
	name = strings.TrimSpace(name)
	cycles, err := parseCycles(rest)
	if err != nil {
		return "", nil, err
	}
	return name, cycles, nil
}

func parseCycles(s string) ([][]int, error) {
	s = strings.TrimSpace(s)
	var cycles [][]int
	for len(s) > 0 {
		start := strings.IndexByte(s, '(')
		if start < 0 {
			break
		}
		end := strings.IndexByte(s[start:], ')')
		if end < 0 {
			return nil, newMalformed("unterminated cycle in %q", s)
		}
		end += start
		body := s[start+1 : end]
		var cyc []int
		for _, tok := range strings.Split(body, ",") {
			tok = strings.TrimSpace(tok)
			n, err := strconv.Atoi(tok)
			if err != nil {
				return nil, newMalformed("non-integer facelet %q in cycle", tok)
			}
			cyc = append(cyc, n)
		}
		cycles = append(cycles, cyc)
		s = s[end+1:]
	}
	return cycles, nil
}

// parseDerivedLine parses "name = gen1 gen2 gen3".
func parseDerivedLine(line string) (string, []string, error) {
	name, rest, ok := splitOnce(line, "=")
	if !ok {
		return "", nil, newMalformed("malformed DERIVED line %q", line)
	}
	return strings.TrimSpace(name), strings.Fields(rest), nil
}

// parsePresetLine parses "(order, order) algo (/ algo)* (~ shared)?".
func parsePresetLine(line string) ([]int, []string, int, bool, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "(") {
		return nil, nil, 0, false, newMalformed("malformed PRESETS line %q", line)
	}
	end := strings.IndexByte(line, ')')
	if end < 0 {
		return nil, nil, 0, false, newMalformed("unterminated order tuple in %q", line)
	}
	var orders []int
	for _, tok := range strings.Split(line[1:end], ",") {
		n, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			return nil, nil, 0, false, newMalformed("non-integer order %q", tok)
		}
		orders = append(orders, n)
	}
	rest := strings.TrimSpace(line[end+1:])
	shared := 0
	hasShared := false
	if idx := strings.IndexByte(rest, '~'); idx >= 0 {
		sharedText := strings.TrimSpace(rest[idx+1:])
		n, err := strconv.Atoi(sharedText)
		if err != nil {
			return nil, nil, 0, false, newMalformed("non-integer shared count %q", sharedText)
		}
		shared = n
		hasShared = true
		rest = strings.TrimSpace(rest[:idx])
	}
	algoTexts := strings.Split(rest, "/")
	for i := range algoTexts {
		algoTexts[i] = strings.TrimSpace(algoTexts[i])
	}
	return orders, algoTexts, shared, hasShared, nil
}

func splitOnce(s, sep string) (before, after string, ok bool) {
	idx := strings.Index(s, sep)
	if idx < 0 {
		return "", "", false
	}
	return s[:idx], s[idx+len(sep):], true
}
