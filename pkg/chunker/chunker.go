// Package chunker segments input text into sentence-aware, token-bounded
// chunks. Chunk IDs are deterministic so a resumed run produces the same
// IDs for the same input.
package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
)

// Chunk is one ordered segment of a source document.
type Chunk struct {
	ID    string
	DocID string
	Index int
	Start int // first sentence index (inclusive)
	End   int // last sentence index (exclusive)
	Text  string
}

// DefaultEncoder is the tiktoken encoding used when none is configured.
const DefaultEncoder = "cl100k_base"

// Split cuts text into chunks of at most maxTokens tokens, never breaking
// inside a sentence. A single sentence longer than maxTokens becomes its
// own oversized chunk.
func Split(text, docID, encoder string, maxTokens int) ([]Chunk, error) {
	if encoder == "" {
		encoder = DefaultEncoder
	}
	enc, err := tiktoken.GetEncoding(encoder)
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	sentences := splitIntoSentences(text)
	if len(sentences) == 0 {
		return nil, nil
	}

	var chunks []Chunk
	chunkStart := -1
	chunkEnd := -1

	flushChunk := func() {
		if chunkStart < 0 || chunkEnd <= chunkStart {
			return
		}

		var chunkText strings.Builder
		for i := chunkStart; i < chunkEnd; i++ {
			if i > chunkStart {
				chunkText.WriteString(" ")
			}
			chunkText.WriteString(sentences[i])
		}

		index := len(chunks)
		chunks = append(chunks, Chunk{
			ID:    fmt.Sprintf("%s:%04d", docID, index),
			DocID: docID,
			Index: index,
			Start: chunkStart,
			End:   chunkEnd,
			Text:  strings.TrimSpace(chunkText.String()),
		})
		chunkStart = -1
		chunkEnd = -1
	}

	for i := range sentences {
		if chunkStart < 0 {
			chunkStart = i
			chunkEnd = i + 1
			continue
		}

		var testText strings.Builder
		for j := chunkStart; j <= i; j++ {
			if j > chunkStart {
				testText.WriteString(" ")
			}
			testText.WriteString(sentences[j])
		}

		testTokens := len(enc.Encode(testText.String(), nil, nil))

		if testTokens <= maxTokens {
			chunkEnd = i + 1
		} else {
			flushChunk()
			chunkStart = i
			chunkEnd = i + 1
		}
	}

	flushChunk()

	return chunks, nil
}

var tableDelimRe = regexp.MustCompile(`^\s*\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)+\|?\s*$`)

// splitIntoSentences breaks text into sentences, keeping markdown tables
// together as single units so tabular facts stay in one chunk.
func splitIntoSentences(text string) []string {
	lines := strings.Split(text, "\n")
	var sentences []string
	var currentSentence strings.Builder

	isTableRow := func(line string) bool {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			return false
		}
		return strings.Contains(trimmed, "|")
	}

	flush := func() {
		if currentSentence.Len() > 0 {
			sentences = append(sentences, strings.TrimSpace(currentSentence.String()))
			currentSentence.Reset()
		}
	}

	appendLine := func(trimmed string) {
		lineSentences := splitLineIntoSentences(trimmed)
		for _, sentence := range lineSentences {
			if currentSentence.Len() > 0 {
				currentSentence.WriteString(" ")
			}
			currentSentence.WriteString(sentence)

			if strings.HasSuffix(strings.TrimSpace(sentence), ".") ||
				strings.HasSuffix(strings.TrimSpace(sentence), "!") ||
				strings.HasSuffix(strings.TrimSpace(sentence), "?") {
				flush()
			}
		}
	}

	inTable := false

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if !inTable && isTableRow(line) && i+1 < len(lines) && tableDelimRe.MatchString(strings.TrimSpace(lines[i+1])) {
			flush()
			inTable = true
			currentSentence.WriteString(line)
			continue
		}

		if !inTable && isTableRow(line) {
			flush()
			sentences = append(sentences, trimmed)
			continue
		}

		if inTable {
			if trimmed == "" || !isTableRow(line) {
				inTable = false
				flush()
				if trimmed != "" {
					appendLine(trimmed)
				}
			} else {
				currentSentence.WriteString("\n")
				currentSentence.WriteString(line)
			}
			continue
		}

		if trimmed == "" {
			flush()
		} else {
			appendLine(trimmed)
		}
	}

	flush()

	var result []string
	for _, sentence := range sentences {
		if strings.TrimSpace(sentence) != "" {
			result = append(result, sentence)
		}
	}

	return result
}

func splitLineIntoSentences(line string) []string {
	var sentences []string
	var current strings.Builder

	for i := 0; i < len(line); i++ {
		current.WriteByte(line[i])

		if line[i] == '.' || line[i] == '!' || line[i] == '?' {
			isNumericListing := false

			if i > 0 && unicode.IsDigit(rune(line[i-1])) {
				if i+1 < len(line) && line[i+1] == ' ' {
					isNumericListing = true
				}
			}

			if isNumericListing {
				continue
			}
			j := i + 1
			for j < len(line) && (line[j] == '.' || line[j] == '!' || line[j] == '?') {
				current.WriteByte(line[j])
				j++
			}

			for j < len(line) && (line[j] == '"' || line[j] == '\'' || line[j] == ')' ||
				line[j] == ']' || line[j] == '}') {
				current.WriteByte(line[j])
				j++
			}

			sentence := strings.TrimSpace(current.String())
			if sentence != "" {
				sentences = append(sentences, sentence)
			}
			current.Reset()
			i = j - 1
		}
	}

	remaining := strings.TrimSpace(current.String())
	if remaining != "" {
		sentences = append(sentences, remaining)
	}

	return sentences
}
