package article

import (
	"bufio"
	"bytes"
	"html"
	"io"
	"strings"
)

// textToHTML turns plain text into one <p> per blank-line separated
// paragraph.
func textToHTML(r io.Reader) ([]byte, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var paragraphs []string
	var current strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		} else {
			if current.Len() > 0 {
				current.WriteString("\n")
			}
			current.WriteString(line)
		}
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for _, para := range paragraphs {
		buf.WriteString("<p>")
		buf.WriteString(html.EscapeString(para))
		buf.WriteString("</p>\n")
	}
	return buf.Bytes(), nil
}
