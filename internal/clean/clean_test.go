package clean

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean_PageNumberAndBlankLines(t *testing.T) {
	assert.Equal(t, "Hello world", Clean("page 3\n\nHello world"))
	assert.Equal(t, "Intro text\n\nBody text", Clean("Intro text\n  PAGE 12 \n\n\n\nBody text"))
}

func TestClean_LineEndingsAndDehyphenation(t *testing.T) {
	assert.Equal(t, "an important sentence", Clean("an impor-\r\ntant sentence"))
	assert.Equal(t, "line one\nline two", Clean("line one\r\nline two\r"))
}

func TestClean_DropsNoiseLines(t *testing.T) {
	in := "Quarterly report\n" +
		"ab\n" + // too short
		"12345\n" + // no letters
		"-----\n" + // separator
		"~~#@!x%&\n" + // symbol heavy
		"Revenue grew 4%"
	assert.Equal(t, "Quarterly report\nRevenue grew 4%", Clean(in))
}

func TestClean_CollapsesHorizontalWhitespace(t *testing.T) {
	assert.Equal(t, "Name Age City", Clean("Name    Age\t\tCity"))
}

func TestClean_KeepsMarkdownTableRows(t *testing.T) {
	assert.Equal(t, "| Name | Age |", Clean("| Name | Age |"))
}

func TestClean_KeepsSlideMarkers(t *testing.T) {
	assert.Equal(t, "--- Slide: p-1.png ---\nBudget", Clean("\n--- Slide: p-1.png ---\nBudget\n"))
	assert.Equal(t, "--- Slide: 1.png ---\nBudget\n\n--- Slide: 2.png ---\nPlan",
		Clean("\n--- Slide: 1.png ---\nBudget\n\n--- Slide: 2.png ---\nPlan\n"))
	assert.Equal(t, "Budget", Clean("--- Slide:  ---\nBudget"))
}

func TestClean_Empty(t *testing.T) {
	assert.Equal(t, "", Clean(""))
	assert.Equal(t, "", Clean("\n\n \n"))
	assert.Equal(t, "", Clean("page 1\n---\n"))
}

func TestClean_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"page 3\n\nHello world",
		"co-\nop-\nerate now",
		"A  b\n\n\n\n\nccc   ddd\t\teee",
		"x-\n\nyz words here",
		"   leading and trailing   \r\n\r\n\r\nPage 7\r\nend of doc",
		"| a | b |\n|---|---|\n| 1 | 2 |",
		"word-\nbreak-\nagain and more",
		"## Heading\n- item one\n* item two\n1. numbered item",
		"  nbsp  spaced text",
	}
	for _, in := range inputs {
		once := Clean(in)
		assert.Equal(t, once, Clean(once), "input %q", in)
	}
}

func TestSymbolRatio(t *testing.T) {
	assert.InDelta(t, 0.0, SymbolRatio("hello world"), 1e-9)
	assert.InDelta(t, 0.5, SymbolRatio("a!b?"), 1e-9)
	assert.InDelta(t, 0.0, SymbolRatio("| a | b |"), 1e-9)
	assert.InDelta(t, 0.0, SymbolRatio("   "), 1e-9)
}

func TestIsNoise(t *testing.T) {
	assert.True(t, IsNoise("ok"))
	assert.True(t, IsNoise("===="))
	assert.True(t, IsNoise("2024"))
	assert.False(t, IsNoise("Budget"))
}
