// Package e2e provides end-to-end tests; this file builds minimal binary
// files for the supported upload formats.
package e2e

import (
	"archive/zip"
	"bytes"

	"github.com/xuri/excelize/v2"
)

// SupportedFileExtensions lists the extensions exercised by file-based
// end-to-end tests. PDF is not generated here (no minimal PDF with
// extractable text).
var SupportedFileExtensions = []string{
	".txt", ".md",
	".docx", ".xlsx", ".pptx",
	".odp", ".ods",
}

// MinimalFile returns file bytes of the given extension carrying the given
// text. For plain types the content is the raw text; for binary types it is
// a minimal well-formed document.
func MinimalFile(ext, text string) ([]byte, error) {
	switch ext {
	case ".docx":
		return minimalDocx(text), nil
	case ".pptx":
		return minimalPptx(text), nil
	case ".odp":
		return minimalOdp(text), nil
	case ".ods":
		return minimalOds(text), nil
	case ".xlsx":
		return minimalXlsx(text)
	default:
		return []byte(text), nil
	}
}

func zipWith(name, content string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create(name)
	_, _ = fw.Write([]byte(content))
	_ = w.Close()
	return buf.Bytes()
}

func minimalDocx(text string) []byte {
	return zipWith("word/document.xml",
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>`+text+`</w:t></w:r></w:p></w:body></w:document>`)
}

func minimalPptx(text string) []byte {
	return zipWith("ppt/slides/slide1.xml",
		`<p:sld><p:cSld><a:t>`+text+`</a:t></p:cSld></p:sld>`)
}

func minimalOdp(text string) []byte {
	return zipWith("content.xml",
		`<office:document-content><office:body><text:p>`+text+`</text:p></office:body></office:document-content>`)
}

func minimalOds(text string) []byte {
	return zipWith("content.xml",
		`<office:document-content><office:body><table:table-cell><text:p>`+text+`</text:p></table:table-cell></office:body></office:document-content>`)
}

func minimalXlsx(text string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetCellValue("Sheet1", "A1", text); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
