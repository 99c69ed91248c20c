// Package parser extracts text and table rows from source documents
// and splits them into chunks ready for embedding. Binary format
// parsing is delegated to the format libraries; this package only
// arranges their output into chunks with page metadata.
package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"manual-rag/internal/chunker"
	"manual-rag/internal/config"
	"manual-rag/internal/errs"
	"manual-rag/internal/models"
)

const defaultPageNumber = 1

type docParser struct {
	splitter *chunker.Splitter
	filename string
	nextID   int
}

// Parse dispatches on the file extension and returns chunks carrying
// the source filename, a 1-based page number and a 1-based chunk id.
// Spreadsheet rows come back as table chunks, everything else as body.
func Parse(filePath string, cfg *config.Config) ([]models.Chunk, error) {
	size, overlap := chunker.DefaultChunkSize, chunker.DefaultChunkOverlap
	if cfg != nil && cfg.RAG.ChunkSize > 0 {
		size, overlap = cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap
	}
	splitter, err := chunker.New(size, overlap)
	if err != nil {
		return nil, err
	}
	p := &docParser{splitter: splitter, filename: filepath.Base(filePath)}

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".pdf":
		return p.parsePDF(filePath)
	case ".docx":
		return p.parseDOCX(filePath)
	case ".pptx":
		return p.parsePPTX(filePath)
	case ".xlsx":
		return p.parseXLSX(filePath)
	case ".ods":
		return p.parseODS(filePath)
	case ".md":
		return p.parseMarkdown(filePath)
	case ".txt":
		return p.parseText(filePath)
	default:
		return nil, fmt.Errorf("%w: unsupported file format: %s", errs.ErrInvalidInput, ext)
	}
}

// bodyChunks splits free text and appends one body chunk per window.
func (p *docParser) bodyChunks(chunks []models.Chunk, text string, page int) []models.Chunk {
	for _, window := range p.splitter.Split(text) {
		if strings.TrimSpace(window) == "" {
			continue
		}
		p.nextID++
		chunks = append(chunks, models.Chunk{
			Content:    window,
			Type:       models.ChunkTypeBody,
			PageNumber: page,
			Filename:   p.filename,
			ChunkID:    p.nextID,
		})
	}
	return chunks
}

// tableChunk appends one table chunk for a joined spreadsheet row.
func (p *docParser) tableChunk(chunks []models.Chunk, row string, page int) []models.Chunk {
	if strings.TrimSpace(row) == "" {
		return chunks
	}
	p.nextID++
	return append(chunks, models.Chunk{
		Content:    row,
		Type:       models.ChunkTypeTable,
		PageNumber: page,
		Filename:   p.filename,
		ChunkID:    p.nextID,
	})
}

func (p *docParser) parsePDF(filePath string) ([]models.Chunk, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	var chunks []models.Chunk
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract text from page %d: %w", i, err)
		}
		chunks = p.bodyChunks(chunks, pageText, i)
	}
	return chunks, nil
}

func (p *docParser) parseDOCX(filePath string) ([]models.Chunk, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	doc := r.Editable()
	var chunks []models.Chunk
	for _, paragraph := range strings.Split(doc.GetContent(), "\n") {
		if paragraph == "" {
			continue
		}
		// DOCX has no page numbers
		chunks = p.bodyChunks(chunks, paragraph, defaultPageNumber)
	}
	return chunks, nil
}

func (p *docParser) parsePPTX(filePath string) ([]models.Chunk, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var chunks []models.Chunk
	slideNum := 0
	for _, file := range f.File {
		if !strings.HasPrefix(file.Name, "ppt/slides/slide") {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		slideNum++
		chunks = p.bodyChunks(chunks, extractTextFromXML(string(data)), slideNum)
	}
	return chunks, nil
}

func (p *docParser) parseXLSX(filePath string) ([]models.Chunk, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, err
	}

	var chunks []models.Chunk
	for sheetNum, sheet := range f.Sheets {
		for _, row := range sheet.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			chunks = p.tableChunk(chunks, strings.Join(cells, " "), sheetNum+1)
		}
	}
	return chunks, nil
}

func (p *docParser) parseODS(filePath string) ([]models.Chunk, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var chunks []models.Chunk
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		for _, row := range rows {
			chunks = p.tableChunk(chunks, strings.Join(row, " "), sheetNum+1)
		}
	}
	return chunks, nil
}

func (p *docParser) parseMarkdown(filePath string) ([]models.Chunk, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	rendered, err := renderMarkdown(string(data))
	if err != nil {
		return nil, err
	}
	return p.bodyChunks(nil, rendered, defaultPageNumber), nil
}

func (p *docParser) parseText(filePath string) ([]models.Chunk, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return p.bodyChunks(nil, string(data), defaultPageNumber), nil
}

func renderMarkdown(text string) (string, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
		),
	)
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return strings.Trim(buf.String(), " \t\n\r"), nil
}

func extractTextFromXML(xmlContent string) string {
	var text strings.Builder
	parts := strings.Split(xmlContent, "<a:t>")
	for i, part := range parts {
		if i == 0 {
			continue
		}
		endIdx := strings.Index(part, "</a:t>")
		if endIdx >= 0 {
			text.WriteString(part[:endIdx] + " ")
		}
	}
	return text.String()
}
