package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const (
	docxDefaultPart     = "word/document.xml"
	contentTypesPart    = "[Content_Types].xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	pptxSlidePrefix     = "ppt/slides/slide"
)

var (
	wordText  = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	drawText  = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)
	overrideX = regexp.MustCompile(`<Override[^>]*/?>`)
	attrRe    = regexp.MustCompile(`(\w+)="([^"]*)"`)
)

// docxMainPart finds the main document part declared in [Content_Types].xml.
// Attribute order inside the Override element is not significant.
func docxMainPart(types []byte) string {
	for _, el := range overrideX.FindAllString(string(types), -1) {
		var part, ctype string
		for _, a := range attrRe.FindAllStringSubmatch(el, -1) {
			switch a[1] {
			case "PartName":
				part = a[2]
			case "ContentType":
				ctype = a[2]
			}
		}
		if ctype == docxMainContentType && part != "" {
			return strings.TrimPrefix(part, "/")
		}
	}
	return ""
}

// extractDOCX collects every <w:t> run. Paragraph elements carry attributes in
// real documents, so matching on runs is what keeps the text.
func extractDOCX(content []byte) (string, error) {
	zr, err := openZip(content, "DOCX")
	if err != nil {
		return "", err
	}
	part := docxDefaultPart
	if types, err := readZipEntry(zr, contentTypesPart, "DOCX"); err == nil && types != nil {
		if p := docxMainPart(types); p != "" {
			part = p
		}
	}
	body, err := readZipEntry(zr, part, "DOCX")
	if err != nil {
		return "", err
	}
	if body == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", part)
	}
	var c textCollector
	c.collect(wordText, string(body))
	return c.String(), nil
}

// extractPPTX collects <a:t> runs from every slide in slide order.
func extractPPTX(content []byte) (string, error) {
	zr, err := openZip(content, "PPTX")
	if err != nil {
		return "", err
	}
	type slide struct {
		n    int
		name string
	}
	var slides []slide
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, pptxSlidePrefix) || !strings.HasSuffix(f.Name, ".xml") {
			continue
		}
		var n int
		fmt.Sscanf(strings.TrimPrefix(f.Name, pptxSlidePrefix), "%d", &n)
		slides = append(slides, slide{n: n, name: f.Name})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	var c textCollector
	for _, s := range slides {
		data, err := readZipEntry(zr, s.name, "PPTX")
		if err != nil {
			return "", err
		}
		c.collect(drawText, string(data))
	}
	return c.String(), nil
}
