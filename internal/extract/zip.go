package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

func openZip(content []byte, format string) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: not a zip: %w", format, err)
	}
	return zr, nil
}

func readZipFile(f *zip.File, format string) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("extract %s: open %s: %w", format, f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("extract %s: read %s: %w", format, f.Name, err)
	}
	return data, nil
}

// readZipEntry returns the named entry, or nil with no error when it is absent.
func readZipEntry(zr *zip.Reader, name, format string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name == name {
			return readZipFile(f, format)
		}
	}
	return nil, nil
}

// textCollector joins the first capture group of every match with single spaces.
type textCollector struct {
	b strings.Builder
}

func (c *textCollector) collect(re *regexp.Regexp, s string) {
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		part := strings.TrimSpace(m[1])
		if part == "" {
			continue
		}
		if c.b.Len() > 0 {
			c.b.WriteByte(' ')
		}
		c.b.WriteString(part)
	}
}

func (c *textCollector) String() string {
	return strings.TrimSpace(c.b.String())
}
