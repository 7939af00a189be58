package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DOCX extracts paragraph text from word/document.xml.
func DOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", unparseable("docx", err)
	}
	content, err := readZipFile(zr, "word/document.xml")
	if err != nil {
		return "", unparseable("docx", err)
	}
	return paragraphText(content, "p", "t")
}

var slideName = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// PPTX extracts slide text in slide order, one block per slide.
func PPTX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", unparseable("pptx", err)
	}

	type slide struct {
		n    int
		file *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		m := slideName.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{n: n, file: f})
	}
	if len(slides) == 0 {
		return "", unparseable("pptx", fmt.Errorf("no slides found"))
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	blocks := make([]string, 0, len(slides))
	for _, s := range slides {
		content, err := readZip(s.file)
		if err != nil {
			return "", unparseable("pptx", err)
		}
		text, err := paragraphText(content, "p", "t")
		if err != nil {
			return "", err
		}
		if text != "" {
			blocks = append(blocks, text)
		}
	}
	return strings.Join(blocks, "\n\n"), nil
}

// paragraphText walks the XML token stream and joins the character data of
// every text element, one line per paragraph element. Only local names are
// compared so it serves both WordprocessingML (w:p/w:t) and DrawingML (a:p/a:t).
func paragraphText(content []byte, paraName, textName string) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	var out, para strings.Builder
	inText := false

	flush := func() {
		line := strings.TrimSpace(para.String())
		para.Reset()
		if line == "" {
			return
		}
		if out.Len() > 0 {
			out.WriteString("\n")
		}
		out.WriteString(line)
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", unparseable("xml", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case textName:
				inText = true
			case "tab":
				para.WriteString("\t")
			case "br":
				para.WriteString(" ")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case textName:
				inText = false
			case paraName:
				flush()
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	flush()
	return out.String(), nil
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name == name {
			return readZip(f)
		}
	}
	return nil, fmt.Errorf("%s not found", name)
}

func readZip(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
