package cucumber

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// Attachments are the scenario-level asset links extracted from step
// embeddings.
type Attachments struct {
	ScreenshotURL       string
	VideoURL            string
	LogsURL             string
	HTTPRequestsURL     string
	JavaScriptErrorsURL string
	DiffReportURL       string
	CucumberReportURL   string
	APIServer           string
	SeleniumNode        string
}

// structuredEmbedding is the JSON payload some glue code attaches to a step
// to publish asset URLs alongside the report.
type structuredEmbedding struct {
	ScreenshotURL       string `json:"screenshotUrl"`
	VideoURL            string `json:"videoUrl"`
	LogsURL             string `json:"logsUrl"`
	HTTPRequestsURL     string `json:"httpRequestsUrl"`
	JavaScriptErrorsURL string `json:"javaScriptErrorsUrl"`
	DiffReportURL       string `json:"diffReportUrl"`
	CucumberReportURL   string `json:"cucumberReportUrl"`
	APIServer           string `json:"apiServer"`
	SeleniumNode        string `json:"seleniumNode"`
}

// ExtractAttachments scans the embeddings of every step of the element and
// returns the asset links found. Later steps win, matching the usual pattern
// of a final screenshot/video hook. Embeddings that fail to decode are
// ignored.
func ExtractAttachments(element *Element) Attachments {
	var a Attachments

	for i := range element.Steps {
		for _, embedding := range element.Steps[i].Embeddings {
			applyEmbedding(&a, &embedding)
		}
	}

	for i := range element.After {
		for _, embedding := range element.After[i].Embeddings {
			applyEmbedding(&a, &embedding)
		}
	}

	return a
}

func applyEmbedding(a *Attachments, embedding *Embedding) {
	data, err := base64.StdEncoding.DecodeString(embedding.Data)
	if err != nil {
		return
	}

	switch embedding.MimeType {
	case "text/plain":
		text := strings.TrimSpace(string(data))
		if strings.HasPrefix(text, "http") && strings.HasSuffix(text, ".mp4") {
			a.VideoURL = text
		}
	case "application/json":
		var s structuredEmbedding
		if err := json.Unmarshal(data, &s); err != nil {
			return
		}

		merge(&a.ScreenshotURL, s.ScreenshotURL)
		merge(&a.VideoURL, s.VideoURL)
		merge(&a.LogsURL, s.LogsURL)
		merge(&a.HTTPRequestsURL, s.HTTPRequestsURL)
		merge(&a.JavaScriptErrorsURL, s.JavaScriptErrorsURL)
		merge(&a.DiffReportURL, s.DiffReportURL)
		merge(&a.CucumberReportURL, s.CucumberReportURL)
		merge(&a.APIServer, s.APIServer)
		merge(&a.SeleniumNode, s.SeleniumNode)
	}
}

func merge(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}
