package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/rotisserie/eris"
)

// TranscriptionRequest is the multipart body for POST /audio/transcriptions.
type TranscriptionRequest struct {
	Audio    []byte
	Filename string
	MimeType string
	Model    string
	Language string
	Prompt   string
}

// TranscriptionResponse is the JSON response of a transcription.
type TranscriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

func (c *httpClient) Transcribe(ctx context.Context, req TranscriptionRequest) (*TranscriptionResponse, error) {
	if len(req.Audio) == 0 {
		return nil, eris.New("openai: transcribe: empty audio")
	}
	if req.Model == "" {
		req.Model = c.transcriptionModel
	}
	if req.Filename == "" {
		req.Filename = "audio"
	}
	if req.MimeType == "" {
		req.MimeType = "application/octet-stream"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+req.Filename+`"`)
	hdr.Set("Content-Type", req.MimeType)
	part, err := w.CreatePart(hdr)
	if err != nil {
		return nil, eris.Wrap(err, "openai: transcribe: create file part")
	}
	if _, err := part.Write(req.Audio); err != nil {
		return nil, eris.Wrap(err, "openai: transcribe: write audio")
	}

	fields := map[string]string{
		"model":           req.Model,
		"response_format": "json",
		"language":        req.Language,
		"prompt":          req.Prompt,
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := w.WriteField(k, v); err != nil {
			return nil, eris.Wrapf(err, "openai: transcribe: write field %s", k)
		}
	}
	if err := w.Close(); err != nil {
		return nil, eris.Wrap(err, "openai: transcribe: close multipart")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return nil, eris.Wrap(err, "openai: transcribe: create request")
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	respBody, err := c.do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "openai: transcribe")
	}

	var result TranscriptionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "openai: transcribe: unmarshal response")
	}
	return &result, nil
}
