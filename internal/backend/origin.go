package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
)

// Calls in this file target the same-origin server (cmd/api). Use a Client
// rooted at PUBLIC_URL for them.

// ContactMessage is the body of the transactional email endpoint.
type ContactMessage struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

func (c *Client) SendContact(ctx context.Context, msg ContactMessage) error {
	return c.do(ctx, http.MethodPost, "api/email", msg, nil)
}

// FilePart is one file handed to the upload endpoint.
type FilePart struct {
	Name        string
	ContentType string
	Identifier  string
	Body        io.Reader
}

type uploadResponse struct {
	Success bool   `json:"success"`
	FileURL string `json:"fileUrl"`
	Error   string `json:"error"`
}

const uploadFailed = "Failed to upload file"

// UploadFile posts the file as multipart form data and returns the public
// path the server stored it under.
func (c *Client) UploadFile(ctx context.Context, f FilePart) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, f.Name))
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f.Body); err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if err := mw.WriteField("identifier", f.Identifier); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve("api/upload"), &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("POST api/upload: %w", err)
	}
	defer resp.Body.Close()

	var out uploadResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode < 200 || resp.StatusCode > 299 || decodeErr != nil || !out.Success || out.FileURL == "" {
		msg := out.Error
		if msg == "" {
			msg = uploadFailed
		}
		c.log.Debug().Int("status", resp.StatusCode).Str("error", msg).Msg("upload rejected")
		return "", &HTTPError{Method: http.MethodPost, Path: "api/upload", Status: resp.StatusCode, Message: msg}
	}
	return out.FileURL, nil
}

// DeleteUpload removes a stored file by name. A missing file is not an
// error.
func (c *Client) DeleteUpload(ctx context.Context, name string) error {
	err := c.do(ctx, http.MethodDelete, "api/upload/"+seg(name), nil, nil)
	if StatusCode(err) == http.StatusNotFound {
		return nil
	}
	return err
}
