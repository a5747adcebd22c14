package extraction

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"docintel/internal/llm"
)

// ErrUnsupportedContent is returned by Prepare for content types extraction cannot read.
var ErrUnsupportedContent = errors.New("unsupported content type")

const (
	mimePDF  = "application/pdf"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// minPDFText is the text layer size below which a PDF is treated as scanned.
	minPDFText   = 50
	maxTextRunes = 100_000
)

// Content is the model input prepared from an uploaded file.
type Content struct {
	Kind  string
	Parts []llm.Part
}

// Prepare turns raw bytes into model content. Text-bearing formats are reduced to text;
// images and scanned PDFs are sent as bytes.
func Prepare(data []byte, contentType, name string) (Content, error) {
	mt := DetectType(data, contentType, name)

	switch {
	case mt == "image/jpeg", mt == "image/png", mt == "image/gif", mt == "image/webp":
		return Content{Kind: "image", Parts: []llm.Part{{Data: data, MIMEType: mt}}}, nil
	case mt == mimePDF:
		text, err := pdfText(data)
		if err == nil && len(strings.TrimSpace(text)) >= minPDFText {
			return textContent("pdf-text", "Document text:\n"+text), nil
		}
		return Content{Kind: "pdf", Parts: []llm.Part{{Data: data, MIMEType: mimePDF}}}, nil
	case mt == mimeXLSX:
		text, err := xlsxText(data)
		if err != nil {
			return Content{}, fmt.Errorf("read spreadsheet: %w", err)
		}
		return textContent("spreadsheet", "Spreadsheet rows (tab separated):\n"+text), nil
	case mt == "text/csv", mt == "text/tab-separated-values", mt == "text/plain":
		if !utf8.Valid(data) {
			return Content{}, fmt.Errorf("%w: %s is not valid UTF-8", ErrUnsupportedContent, mt)
		}
		return textContent("text", "Document text:\n"+string(data)), nil
	default:
		return Content{}, fmt.Errorf("%w: %s", ErrUnsupportedContent, mt)
	}
}

// DetectType resolves the media type from the declared header, the file extension, then the bytes.
func DetectType(data []byte, contentType, name string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt != "application/octet-stream" {
		return strings.ToLower(mt)
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".csv":
		return "text/csv"
	case ".tsv":
		return "text/tab-separated-values"
	case ".txt":
		return "text/plain"
	case ".xlsx":
		return mimeXLSX
	case ".pdf":
		return mimePDF
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mt
}

func textContent(kind, text string) Content {
	if utf8.RuneCountInString(text) > maxTextRunes {
		text = string([]rune(text)[:maxTextRunes])
	}
	return Content{Kind: kind, Parts: []llm.Part{{Text: text}}}
}

func pdfText(data []byte) (text string, err error) {
	// the pdf reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("read PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}

	var buf strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(text)
		buf.WriteString("\n")
	}
	return buf.String(), nil
}

type xlsxSharedStrings struct {
	Items []struct {
		Text string `xml:"t"`
		Runs []struct {
			Text string `xml:"t"`
		} `xml:"r"`
	} `xml:"si"`
}

type xlsxWorksheet struct {
	Rows []struct {
		Cells []struct {
			Type   string `xml:"t,attr"`
			Value  string `xml:"v"`
			Inline struct {
				Text string `xml:"t"`
			} `xml:"is"`
		} `xml:"c"`
	} `xml:"sheetData>row"`
}

func xlsxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open XLSX: %w", err)
	}

	var (
		shared []string
		sheets []*zip.File
	)
	for _, f := range zr.File {
		switch {
		case f.Name == "xl/sharedStrings.xml":
			var sst xlsxSharedStrings
			if err := decodeXML(f, &sst); err != nil {
				return "", err
			}
			for _, si := range sst.Items {
				s := si.Text
				for _, r := range si.Runs {
					s += r.Text
				}
				shared = append(shared, s)
			}
		case strings.HasPrefix(f.Name, "xl/worksheets/") && strings.HasSuffix(f.Name, ".xml"):
			sheets = append(sheets, f)
		}
	}
	if len(sheets) == 0 {
		return "", errors.New("no worksheets")
	}
	sort.Slice(sheets, func(i, j int) bool { return sheets[i].Name < sheets[j].Name })

	var buf strings.Builder
	for _, f := range sheets {
		var ws xlsxWorksheet
		if err := decodeXML(f, &ws); err != nil {
			return "", err
		}
		for _, row := range ws.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, c := range row.Cells {
				v := c.Value
				switch c.Type {
				case "s":
					if idx, err := strconv.Atoi(v); err == nil && idx >= 0 && idx < len(shared) {
						v = shared[idx]
					}
				case "inlineStr":
					v = c.Inline.Text
				}
				cells = append(cells, v)
			}
			buf.WriteString(strings.Join(cells, "\t"))
			buf.WriteString("\n")
		}
	}
	return buf.String(), nil
}

func decodeXML(f *zip.File, v any) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	if err := xml.NewDecoder(io.LimitReader(rc, 32<<20)).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", f.Name, err)
	}
	return nil
}
