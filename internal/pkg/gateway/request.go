package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
)

// Request describes one API call. Set at most one of JSON and Form.
type Request struct {
	Method string
	Path   string
	Query  url.Values

	// JSON is marshalled as the request body with Content-Type application/json.
	JSON any

	// Form is sent as multipart/form-data.
	Form *Form

	// Public calls never read or attach the stored token (login, OTP, registration).
	Public bool
}

// Form is a multipart body.
type Form struct {
	Fields map[string]string
	Files  []File
}

type File struct {
	Field    string
	Filename string
	Content  []byte
}

func NewForm() *Form {
	return &Form{Fields: make(map[string]string)}
}

func (f *Form) Set(key, value string) *Form {
	f.Fields[key] = value
	return f
}

func (f *Form) AddFile(field, filename string, content []byte) *Form {
	f.Files = append(f.Files, File{Field: field, Filename: filename, Content: content})
	return f
}

// body is an encoded request body that can be replayed on every attempt.
type body struct {
	data        []byte
	contentType string
}

func (b *body) reader() io.Reader {
	if b == nil {
		return nil
	}
	return bytes.NewReader(b.data)
}

func (r *Request) encodeBody() (*body, error) {
	switch {
	case r.JSON != nil && r.Form != nil:
		return nil, fmt.Errorf("request %s %s has both JSON and form bodies", r.Method, r.Path)
	case r.Form != nil:
		return r.Form.encode()
	case r.JSON != nil:
		data, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		return &body{data: data, contentType: "application/json"}, nil
	}
	return nil, nil
}

func (f *Form) encode() (*body, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range f.Fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}
	for _, file := range f.Files {
		part, err := w.CreateFormFile(file.Field, file.Filename)
		if err != nil {
			return nil, fmt.Errorf("create form file %s: %w", file.Field, err)
		}
		if _, err := part.Write(file.Content); err != nil {
			return nil, fmt.Errorf("write form file %s: %w", file.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	return &body{data: buf.Bytes(), contentType: w.FormDataContentType()}, nil
}
