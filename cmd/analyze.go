package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/meal-analyzer/internal/analysis"
	"github.com/sells-group/meal-analyzer/internal/model"
)

var (
	analyzeUser     string
	analyzeDate     string
	analyzeMealHint string
	analyzeMime     string
	analyzeSave     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one analysis and print the result as JSON",
}

var analyzeTextCmd = &cobra.Command{
	Use:   "text <description...>",
	Short: "Analyze a free-text meal description",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload := analyzeFields()
		payload["text"] = strings.Join(args, " ")
		return runAnalyze(cmd, model.ModalityText, payload)
	},
}

var analyzeImageCmd = &cobra.Command{
	Use:   "image <url>",
	Short: "Analyze a meal photo by URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload := analyzeFields()
		payload["image_url"] = args[0]
		if _, ok := payload["date"]; !ok {
			payload["date"] = time.Now().Format(time.DateOnly)
		}
		return runAnalyze(cmd, model.ModalityImage, payload)
	},
}

var analyzeAudioCmd = &cobra.Command{
	Use:   "audio <file|url>",
	Short: "Transcribe and analyze a voice note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := audioPayload(args[0])
		if err != nil {
			return err
		}
		return runAnalyze(cmd, model.ModalityAudio, payload)
	},
}

// analyzeFields returns the request fields shared by every modality.
func analyzeFields() map[string]any {
	fields := map[string]any{"user_id": analyzeUser}
	if analyzeDate != "" {
		fields["date"] = analyzeDate
	}
	if analyzeMealHint != "" {
		fields["meal_hint"] = analyzeMealHint
	}
	return fields
}

// audioPayload references src by URL, or inlines it when it is a local file.
func audioPayload(src string) (map[string]any, error) {
	payload := analyzeFields()
	if analyzeMime != "" {
		payload["audio_mime_type"] = analyzeMime
	}
	lower := strings.ToLower(src)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		payload["audio_url"] = src
		return payload, nil
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return nil, eris.Wrap(err, "read audio file")
	}
	payload["audio_base64"] = base64.StdEncoding.EncodeToString(data)
	return payload, nil
}

func runAnalyze(cmd *cobra.Command, modality model.Modality, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	env, err := initAnalyzer(cmd.Context(), "analyze", analyzeSave)
	if err != nil {
		return err
	}
	defer env.Close()

	// The operator acts as the request subject.
	resp, err := env.Pipeline.Process(cmd.Context(), analyzeUser, modality, body)
	if err != nil {
		return fmt.Errorf("%s: %s", analysis.KindOf(err), analysis.PublicMessage(err))
	}
	return writeJSON(cmd.OutOrStdout(), resp)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	for _, c := range []*cobra.Command{analyzeTextCmd, analyzeImageCmd, analyzeAudioCmd} {
		analyzeCmd.AddCommand(c)
	}
	analyzeCmd.PersistentFlags().StringVar(&analyzeUser, "user", "cli", "user id the meal belongs to")
	analyzeCmd.PersistentFlags().StringVar(&analyzeDate, "date", "", "meal date (YYYY-MM-DD)")
	analyzeCmd.PersistentFlags().StringVar(&analyzeMealHint, "meal-hint", "", "breakfast, lunch, dinner or snack")
	analyzeCmd.PersistentFlags().BoolVar(&analyzeSave, "save", false, "persist the result to the configured store")
	analyzeAudioCmd.Flags().StringVar(&analyzeMime, "mime", "", "audio MIME type (sniffed when omitted)")
	rootCmd.AddCommand(analyzeCmd)
}
