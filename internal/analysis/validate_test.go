package analysis

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/meal-analyzer/internal/model"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	require.NoError(t, err)
	return v
}

func TestValidate_Image(t *testing.T) {
	t.Parallel()
	v := newTestValidator(t)

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "valid", body: `{"image_url":"https://img.example.com/p.jpg","user_id":"u1","date":"2024-05-01","meal_hint":"lunch"}`},
		{name: "missing_hint", body: `{"image_url":"https://img.example.com/p.jpg","user_id":"u1","date":"2024-05-01"}`, wantErr: "meal_hint"},
		{name: "bad_hint", body: `{"image_url":"https://img.example.com/p.jpg","user_id":"u1","date":"2024-05-01","meal_hint":"brunch"}`, wantErr: "/meal_hint"},
		{name: "relative_url", body: `{"image_url":"/p.jpg","user_id":"u1","date":"2024-05-01","meal_hint":"lunch"}`, wantErr: "/image_url"},
		{name: "ftp_url", body: `{"image_url":"ftp://host/p.jpg","user_id":"u1","date":"2024-05-01","meal_hint":"lunch"}`, wantErr: "/image_url"},
		{name: "bad_date", body: `{"image_url":"https://img.example.com/p.jpg","user_id":"u1","date":"05/01/2024","meal_hint":"lunch"}`, wantErr: "/date"},
		{name: "blank_user", body: `{"image_url":"https://img.example.com/p.jpg","user_id":"  ","date":"2024-05-01","meal_hint":"lunch"}`, wantErr: "/user_id"},
		{name: "not_json", body: `{"image_url":`, wantErr: "not valid JSON"},
		{name: "array", body: `[]`, wantErr: "invalid request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req, err := v.Validate(model.ModalityImage, []byte(tt.body))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, KindInvalidRequest, KindOf(err))
				assert.Contains(t, PublicMessage(err), tt.wantErr)
				assert.Nil(t, req)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, model.ModalityImage, req.Modality)
			assert.Equal(t, "https://img.example.com/p.jpg", req.ImageURL)
			assert.Equal(t, "u1", req.SubjectUserID)
			assert.Equal(t, "2024-05-01", req.Date)
			assert.Equal(t, model.MealLunch, req.MealHint)
		})
	}
}

func TestValidate_Text(t *testing.T) {
	t.Parallel()
	v := newTestValidator(t)

	req, err := v.Validate(model.ModalityText, []byte(`{"text":"two eggs","user_id":"u1"}`))
	require.NoError(t, err)
	assert.Equal(t, "two eggs", req.Text)
	assert.Empty(t, req.Date)
	assert.Empty(t, req.MealHint)

	for _, body := range []string{
		`{"text":"   ","user_id":"u1"}`,
		`{"user_id":"u1"}`,
		`{"text":"eggs"}`,
		`{"text":"eggs","user_id":"u1","meal_hint":"supper"}`,
	} {
		_, err := v.Validate(model.ModalityText, []byte(body))
		require.Error(t, err, body)
		assert.Equal(t, KindInvalidRequest, KindOf(err), body)
	}
}

func TestValidate_Audio(t *testing.T) {
	t.Parallel()
	v := newTestValidator(t)
	m4a := []byte("\x00\x00\x00\x20ftypM4A audio")
	b64 := base64.StdEncoding.EncodeToString(m4a)

	t.Run("inline_sniffed", func(t *testing.T) {
		t.Parallel()
		req, err := v.Validate(model.ModalityAudio, []byte(`{"audio_base64":"`+b64+`","user_id":"u1"}`))
		require.NoError(t, err)
		assert.Equal(t, m4a, req.AudioData)
		assert.Equal(t, "audio/mp4", req.AudioMimeType)
	})

	t.Run("inline_declared_type", func(t *testing.T) {
		t.Parallel()
		req, err := v.Validate(model.ModalityAudio, []byte(`{"audio_base64":"`+b64+`","audio_mime_type":"audio/mpeg","user_id":"u1"}`))
		require.NoError(t, err)
		assert.Equal(t, "audio/mpeg", req.AudioMimeType)
	})

	t.Run("data_uri", func(t *testing.T) {
		t.Parallel()
		req, err := v.Validate(model.ModalityAudio, []byte(`{"audio_base64":"data:audio/webm;base64,`+b64+`","user_id":"u1"}`))
		require.NoError(t, err)
		assert.Equal(t, m4a, req.AudioData)
		assert.Equal(t, "audio/webm", req.AudioMimeType)
	})

	t.Run("url", func(t *testing.T) {
		t.Parallel()
		req, err := v.Validate(model.ModalityAudio, []byte(`{"audio_url":"https://cdn.example.com/a.m4a","user_id":"u1","date":"2024-05-01"}`))
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/a.m4a", req.AudioURL)
		assert.Nil(t, req.AudioData)
	})

	for name, body := range map[string]string{
		"neither":     `{"user_id":"u1"}`,
		"both":        `{"audio_url":"https://cdn.example.com/a.m4a","audio_base64":"` + b64 + `","user_id":"u1"}`,
		"bad_base64":  `{"audio_base64":"%%%not-base64%%%","user_id":"u1"}`,
		"empty_b64":   `{"audio_base64":"","user_id":"u1"}`,
		"bad_mime":    `{"audio_base64":"` + b64 + `","audio_mime_type":"text/plain","user_id":"u1"}`,
		"missing_uid": `{"audio_url":"https://cdn.example.com/a.m4a"}`,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := v.Validate(model.ModalityAudio, []byte(body))
			require.Error(t, err)
			assert.Equal(t, KindInvalidRequest, KindOf(err))
		})
	}
}

func TestValidate_UnknownModality(t *testing.T) {
	v := newTestValidator(t)
	_, err := v.Validate("video", []byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, KindInvalidRequest, KindOf(err))
}

func TestAuthorize(t *testing.T) {
	t.Parallel()
	req := &model.AnalysisRequest{SubjectUserID: "u1"}

	assert.NoError(t, Authorize("u1", req))
	assert.Equal(t, KindUnauthorized, KindOf(Authorize("", req)))
	assert.Equal(t, KindForbidden, KindOf(Authorize("u2", req)))
}
