package services

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

const (
	nameSearchLines = 5
	maxNameWords    = 4
)

var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

type ParsedResume struct {
	Text      string
	Name      *string
	Email     *string
	PageCount int
}

type ResumeParser interface {
	Parse(filePath string) (*ParsedResume, error)
}

type resumeParser struct{}

func NewResumeParser() ResumeParser {
	return &resumeParser{}
}

func (p *resumeParser) Parse(filePath string) (*ParsedResume, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("file does not exist: %s", filePath)
	}

	f, r, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	totalPage := r.NumPage()

	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := r.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		sb.WriteString(text)
		sb.WriteString("\n")
	}

	text := CleanText(sb.String())
	if text == "" {
		return nil, fmt.Errorf("no text content found in PDF")
	}

	return &ParsedResume{
		Text:      text,
		Name:      ExtractName(text),
		Email:     ExtractEmail(text),
		PageCount: totalPage,
	}, nil
}

// ExtractName takes the first short line containing a letter among the
// first few lines of the resume.
func ExtractName(text string) *string {
	lines := strings.Split(text, "\n")
	if len(lines) > nameSearchLines {
		lines = lines[:nameSearchLines]
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || len(strings.Fields(line)) > maxNameWords {
			continue
		}
		if strings.IndexFunc(line, unicode.IsLetter) >= 0 {
			return &line
		}
	}
	return nil
}

func ExtractEmail(text string) *string {
	match := emailPattern.FindString(text)
	if match == "" {
		return nil
	}
	return &match
}

// CleanText trims every line and drops empty ones.
func CleanText(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	cleaned := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}

	return strings.Join(cleaned, "\n")
}
