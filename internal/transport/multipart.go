package transport

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
	"strings"
)

// File is one file part of a multipart body
type File struct {
	FieldName   string
	FileName    string
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// Field is one plain-text part of a multipart body
type Field struct {
	Name  string
	Value string
}

// Multipart describes a multipart/form-data body. Text fields with an empty
// value are not sent at all.
type Multipart struct {
	Files  []File
	Fields []Field
}

type openedFile struct {
	File
	rc io.ReadCloser
}

// open materialises every file part up front so a missing file fails the call
// before anything is sent.
func (m *Multipart) open() ([]openedFile, error) {
	opened := make([]openedFile, 0, len(m.Files))
	for _, f := range m.Files {
		if f.Open == nil {
			closeAll(opened)
			return nil, fmt.Errorf("%w: %s has no source", ErrFileUnavailable, f.FieldName)
		}
		rc, err := f.Open()
		if err != nil {
			closeAll(opened)
			return nil, fmt.Errorf("%w: %s: %v", ErrFileUnavailable, f.FieldName, err)
		}
		opened = append(opened, openedFile{File: f, rc: rc})
	}
	return opened, nil
}

// stream returns a reader producing the encoded body and its content type.
// The body is written through an io.Pipe while the request is sent.
func (m *Multipart) stream() (io.ReadCloser, string, error) {
	files, err := m.open()
	if err != nil {
		return nil, "", err
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		defer closeAll(files)
		pw.CloseWithError(m.write(mw, files))
	}()

	return pr, mw.FormDataContentType(), nil
}

func (m *Multipart) write(mw *multipart.Writer, files []openedFile) error {
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escapeQuotes(f.FieldName), escapeQuotes(f.FileName)))
		h.Set("Content-Type", contentTypeFor(f.File))

		part, err := mw.CreatePart(h)
		if err != nil {
			return fmt.Errorf("failed to create part %s: %w", f.FieldName, err)
		}
		if _, err := io.Copy(part, f.rc); err != nil {
			return fmt.Errorf("failed to write part %s: %w", f.FieldName, err)
		}
	}

	for _, field := range m.Fields {
		if field.Value == "" {
			continue
		}
		if err := mw.WriteField(field.Name, field.Value); err != nil {
			return fmt.Errorf("failed to write field %s: %w", field.Name, err)
		}
	}

	return mw.Close()
}

func contentTypeFor(f File) string {
	if f.ContentType != "" {
		return f.ContentType
	}
	switch strings.ToLower(filepath.Ext(f.FileName)) {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	}
	if ct := mime.TypeByExtension(filepath.Ext(f.FileName)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func closeAll(files []openedFile) {
	for _, f := range files {
		_ = f.rc.Close()
	}
}
