// Package extract turns resume and job description files into raw text.
package extract

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"resumerank/internal/errors"
	"resumerank/internal/utils"
)

// RawDocument is the text extracted from one file. Warning is set when the
// file could not be decoded and Content is empty or partial as a result.
type RawDocument struct {
	Name    string `json:"name"`
	Format  string `json:"format"`
	Content string `json:"-"`
	Warning string `json:"warning,omitempty"`
}

type decoder func(data []byte) (string, error)

var decoders = map[string]decoder{
	".txt":      plainText,
	".text":     plainText,
	".md":       plainText,
	".markdown": plainText,
	".pdf":      pdfText,
	".docx":     docxText,
	".html":     htmlText,
	".htm":      htmlText,
}

// SupportedExtensions lists the file extensions that can be decoded.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(decoders))
	for ext := range decoders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// IsSupported reports whether name has a decodable extension.
func IsSupported(name string) bool {
	_, ok := decoders[utils.GetFileExtension(name)]
	return ok
}

// Extractor reads files and decodes them by extension.
type Extractor struct {
	maxFileSize int64
	logger      *errors.Logger
}

// NewExtractor creates an extractor refusing files larger than maxFileSize
// bytes. A non-positive maxFileSize disables the check.
func NewExtractor(maxFileSize int64, logger *errors.Logger) *Extractor {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	return &Extractor{maxFileSize: maxFileSize, logger: logger}
}

// ExtractFile reads path and extracts its text. Only problems reading the
// file are returned as errors; decode problems become a Warning.
func (e *Extractor) ExtractFile(path string) (RawDocument, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RawDocument{}, errors.NewIOError(errors.ErrCodeFileNotFound,
				fmt.Sprintf("File not found: %s", path), err)
		}
		return RawDocument{}, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot access file: %s", path), err)
	}
	if info.IsDir() {
		return RawDocument{}, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Path is a directory: %s", path), nil)
	}
	if e.maxFileSize > 0 && info.Size() > e.maxFileSize {
		return RawDocument{}, errors.NewValidationError(errors.ErrCodeFileTooLarge,
			fmt.Sprintf("File %s is %s, larger than the %s limit", path,
				utils.FormatFileSize(info.Size()), utils.FormatFileSize(e.maxFileSize)), nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return RawDocument{}, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", path), err)
	}

	return e.ExtractBytes(filepath.Base(path), data), nil
}

// ExtractBytes decodes data according to the extension of name. It never
// fails: unsupported formats and decode errors yield empty content and a
// warning.
func (e *Extractor) ExtractBytes(name string, data []byte) RawDocument {
	ext := utils.GetFileExtension(name)
	doc := RawDocument{Name: name, Format: formatName(ext)}

	decode, ok := decoders[ext]
	if !ok {
		doc.Warning = fmt.Sprintf("unsupported file type %q", ext)
		e.logger.Warn("Skipping unsupported file type", "file", name, "extension", ext)
		return doc
	}

	content, err := decode(data)
	if err != nil {
		doc.Warning = fmt.Sprintf("could not extract text: %v", err)
		e.logger.LogError(errors.NewIOError(errors.ErrCodeExtractionFailed,
			"text extraction failed", err), "Extraction failed, scoring empty text", "file", name)
		return doc
	}

	doc.Content = content
	if content == "" {
		doc.Warning = "no text could be extracted"
	}
	e.logger.Debug("Extracted document text", "file", name, "format", doc.Format, "characters", len(content))
	return doc
}

// CollectPaths expands directories into the supported files beneath them, in
// lexical order. Files named explicitly are kept whatever their extension so
// that the caller sees a warning rather than silently losing them.
func CollectPaths(paths []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.NewIOError(errors.ErrCodeFileNotFound,
					fmt.Sprintf("File not found: %s", p), err)
			}
			return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
				fmt.Sprintf("Cannot access file: %s", p), err)
		}
		if !info.IsDir() {
			add(p)
			continue
		}

		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && IsSupported(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
				fmt.Sprintf("Cannot walk directory: %s", p), err)
		}
		slices.Sort(found)
		for _, f := range found {
			add(f)
		}
	}
	return out, nil
}

func formatName(ext string) string {
	switch ext {
	case ".txt", ".text":
		return "text"
	case ".md", ".markdown":
		return "markdown"
	case ".htm", ".html":
		return "html"
	case "":
		return "unknown"
	default:
		return ext[1:]
	}
}
