package analysis

import (
	"bytes"
	"embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/sells-group/meal-analyzer/internal/fetcher"
	"github.com/sells-group/meal-analyzer/internal/model"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// wireRequest is the inbound JSON body shared by all modalities.
type wireRequest struct {
	ImageURL      string `json:"image_url"`
	AudioURL      string `json:"audio_url"`
	AudioBase64   string `json:"audio_base64"`
	AudioMimeType string `json:"audio_mime_type"`
	Text          string `json:"text"`
	UserID        string `json:"user_id"`
	Date          string `json:"date"`
	MealHint      string `json:"meal_hint"`
}

// Validator checks request shape per modality.
type Validator struct {
	schemas map[model.Modality]*jsonschema.Schema
}

// NewValidator compiles the request schemas.
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true

	v := &Validator{schemas: make(map[model.Modality]*jsonschema.Schema)}
	for _, m := range []model.Modality{model.ModalityImage, model.ModalityAudio, model.ModalityText} {
		name := "schemas/" + string(m) + ".json"
		data, err := schemaFS.ReadFile(name)
		if err != nil {
			return nil, eris.Wrapf(err, "analysis: read schema %s", name)
		}
		if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
			return nil, eris.Wrapf(err, "analysis: add schema %s", name)
		}
		schema, err := compiler.Compile(name)
		if err != nil {
			return nil, eris.Wrapf(err, "analysis: compile schema %s", name)
		}
		v.schemas[m] = schema
	}
	return v, nil
}

// Validate checks payload against the modality's rules and returns the
// request it describes. It has no side effects.
func (v *Validator) Validate(modality model.Modality, payload []byte) (*model.AnalysisRequest, error) {
	schema, ok := v.schemas[modality]
	if !ok {
		return nil, newError(KindInvalidRequest, "unknown modality "+string(modality), nil)
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, newError(KindInvalidRequest, "request body is not valid JSON", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, newError(KindInvalidRequest, "invalid request: "+describe(err), err)
	}

	var w wireRequest
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, newError(KindInvalidRequest, "request body does not match the expected fields", err)
	}

	req := &model.AnalysisRequest{
		Modality:      modality,
		SubjectUserID: w.UserID,
		Date:          w.Date,
		MealHint:      model.MealType(w.MealHint),
	}
	switch modality {
	case model.ModalityImage:
		req.ImageURL = w.ImageURL
	case model.ModalityText:
		req.Text = w.Text
	case model.ModalityAudio:
		req.AudioURL = w.AudioURL
		req.AudioMimeType = w.AudioMimeType
		if w.AudioBase64 != "" {
			data, mime, err := decodeAudio(w.AudioBase64)
			if err != nil {
				return nil, newError(KindInvalidRequest, "invalid request: audio_base64 is not valid base64 audio", err)
			}
			req.AudioData = data
			if req.AudioMimeType == "" {
				req.AudioMimeType = mime
			}
			if req.AudioMimeType == "" {
				req.AudioMimeType = fetcher.ContentType("", data)
			}
		}
	}
	return req, nil
}

// decodeAudio accepts plain base64 or a data: URI and returns the bytes and
// any media type the URI declared.
func decodeAudio(s string) ([]byte, string, error) {
	var mime string
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(meta, ";base64") {
			return nil, "", eris.New("malformed data URI")
		}
		mime = strings.TrimSuffix(meta, ";base64")
		s = payload
	}

	s = strings.TrimSpace(s)
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	}
	if err != nil {
		return nil, "", eris.Wrap(err, "decode base64")
	}
	if len(data) == 0 {
		return nil, "", eris.New("empty audio")
	}
	return data, mime, nil
}

// describe flattens a schema validation error into its leaf messages.
func describe(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	var msgs []string
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			msgs = append(msgs, loc+": "+e.Message)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return strings.Join(msgs, "; ")
}

// Authorize checks that the authenticated caller is the request subject.
func Authorize(caller string, req *model.AnalysisRequest) error {
	if caller == "" {
		return newError(KindUnauthorized, "authentication required", nil)
	}
	if caller != req.SubjectUserID {
		return newError(KindForbidden, "user_id does not match the authenticated caller", nil)
	}
	return nil
}
