package model

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// LineContext is a line of a route file with up to two lines on either side,
// used when a route file fails to parse.
type LineContext struct {
	Before     []string // Lines preceding the target, oldest first
	Target     string   // The offending line
	After      []string // Lines following the target
	LineNumber int      // 1-based line number of the target
	ErrorMsg   string   // Set when the line is out of range
}

// GetLineContext returns the target line of content with surrounding context.
func GetLineContext(content []byte, lineNumber int) LineContext {
	result := LineContext{LineNumber: lineNumber}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		result.ErrorMsg = fmt.Sprintf("Error reading content: %v", err)
		return result
	}

	if lineNumber < 1 || lineNumber > len(lines) {
		result.ErrorMsg = fmt.Sprintf("Line %d out of range (file has %d lines)", lineNumber, len(lines))
		return result
	}

	idx := lineNumber - 1
	result.Target = lines[idx]
	for i := max(0, idx-2); i < idx; i++ {
		result.Before = append(result.Before, lines[i])
	}
	for i := idx + 1; i < len(lines) && i <= idx+2; i++ {
		result.After = append(result.After, lines[i])
	}
	return result
}

// String renders the context with line numbers and a marker on the target.
func (c LineContext) String() string {
	if c.ErrorMsg != "" {
		return c.ErrorMsg
	}
	var b strings.Builder
	first := c.LineNumber - len(c.Before)
	for i, l := range c.Before {
		fmt.Fprintf(&b, "  %4d | %s\n", first+i, l)
	}
	fmt.Fprintf(&b, "> %4d | %s\n", c.LineNumber, c.Target)
	for i, l := range c.After {
		fmt.Fprintf(&b, "  %4d | %s\n", c.LineNumber+1+i, l)
	}
	return b.String()
}
