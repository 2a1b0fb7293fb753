package filetype

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

const pdfMIME = "application/pdf"

// FileTypeInfo contains detected file type information
type FileTypeInfo struct {
	MIMEType    string
	Extension   string
	IsPDF       bool
	Description string
}

// NotPDFError is returned by RequirePDF when the magic bytes say something else.
type NotPDFError struct {
	Path     string
	MIMEType string
}

func (e *NotPDFError) Error() string {
	return fmt.Sprintf("%s is %s, not a PDF document", filepath.Base(e.Path), e.MIMEType)
}

// Detector handles file type detection using magic bytes
type Detector struct{}

// New creates a new file type detector
func New() *Detector {
	return &Detector{}
}

// Detect detects the actual file type using magic bytes, not filename
func (d *Detector) Detect(filePath string) (*FileTypeInfo, error) {
	mtype, err := mimetype.DetectFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}

	info := &FileTypeInfo{
		MIMEType:  mtype.String(),
		Extension: mtype.Extension(),
	}
	log.Debug().Str("mime", info.MIMEType).Str("ext", info.Extension).Str("file", filePath).Msg("detected file type")

	d.classify(info, strings.ToLower(filepath.Ext(filePath)))
	return info, nil
}

func (d *Detector) classify(info *FileTypeInfo, ext string) {
	switch {
	case mimetype.EqualsAny(info.MIMEType, pdfMIME):
		info.IsPDF = true
		info.Description = "PDF document"
	case strings.HasPrefix(info.MIMEType, "text/"):
		info.Description = "Plain text file"
	case strings.HasPrefix(info.MIMEType, "image/"):
		info.Description = "Image file"
	default:
		info.Description = fmt.Sprintf("Unsupported file type: %s", info.MIMEType)
	}

	if !info.IsPDF && ext == ".pdf" {
		log.Warn().Str("mime", info.MIMEType).Msg("file named .pdf does not carry a PDF header")
	}
}

// RequirePDF fails with *NotPDFError unless the file content is a PDF.
func (d *Detector) RequirePDF(filePath string) error {
	info, err := d.Detect(filePath)
	if err != nil {
		return err
	}
	if !info.IsPDF {
		return &NotPDFError{Path: filePath, MIMEType: info.MIMEType}
	}
	return nil
}
