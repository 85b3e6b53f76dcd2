package extract

import (
	"fmt"
	"regexp"
)

const odfContentPart = "content.xml"

var (
	odfParagraph = regexp.MustCompile(`<text:p[^>]*>([^<]*)</text:p>`)
	odfSpan      = regexp.MustCompile(`<text:span[^>]*>([^<]*)</text:span>`)
	odfHeading   = regexp.MustCompile(`<text:h[^>]*>([^<]*)</text:h>`)
)

func extractODP(content []byte) (string, error) {
	return extractODF(content, "ODP", odfParagraph, odfSpan, odfHeading)
}

func extractODS(content []byte) (string, error) {
	return extractODF(content, "ODS", odfParagraph, odfSpan)
}

// extractODF reads content.xml from an OpenDocument package and collects the
// text of each element pattern in turn.
func extractODF(content []byte, format string, patterns ...*regexp.Regexp) (string, error) {
	zr, err := openZip(content, format)
	if err != nil {
		return "", err
	}
	body, err := readZipEntry(zr, odfContentPart, format)
	if err != nil {
		return "", err
	}
	if body == nil {
		return "", fmt.Errorf("extract %s: %s not found", format, odfContentPart)
	}
	var c textCollector
	for _, re := range patterns {
		c.collect(re, string(body))
	}
	return c.String(), nil
}
