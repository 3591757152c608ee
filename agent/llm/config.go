package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/warrantix/warrantix/agent/contract"
	gigachatx "github.com/warrantix/warrantix/pkg/gigachat"
)

// Role selects the per-stage model configuration.
type Role string

const (
	RoleClassifier Role = "classifier"
	RoleAnalyzer   Role = "analyzer"
	RoleReport     Role = "report"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://gigachat.api.cloud.ru/api/gigachat/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	ProjectID          string        `envconfig:"PROJECT_ID" split_words:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" default:"GigaChat"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"512"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"60s"`

	ClassifierModel       string  `envconfig:"CLASSIFIER_MODEL" split_words:"true"`
	AnalyzerModel         string  `envconfig:"ANALYZER_MODEL" split_words:"true"`
	ReportModel           string  `envconfig:"REPORT_MODEL" split_words:"true"`
	ClassifierTemperature float32 `envconfig:"CLASSIFIER_TEMPERATURE" split_words:"true" default:"-1"`
	AnalyzerTemperature   float32 `envconfig:"ANALYZER_TEMPERATURE" split_words:"true" default:"-1"`
	ReportTemperature     float32 `envconfig:"REPORT_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: gigachat api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// GigaChatFor resolves the model settings for one stage, applying per-role
// overrides on top of the shared defaults.
func (c Config) GigaChatFor(role Role) gigachatx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch role {
	case RoleClassifier:
		if v := strings.TrimSpace(c.ClassifierModel); v != "" {
			modelName = v
		}
		if c.ClassifierTemperature >= 0 {
			temp = c.ClassifierTemperature
		}
	case RoleAnalyzer:
		if v := strings.TrimSpace(c.AnalyzerModel); v != "" {
			modelName = v
		}
		if c.AnalyzerTemperature >= 0 {
			temp = c.AnalyzerTemperature
		}
	case RoleReport:
		if v := strings.TrimSpace(c.ReportModel); v != "" {
			modelName = v
		}
		if c.ReportTemperature >= 0 {
			temp = c.ReportTemperature
		}
	}

	maxCompletionToken := c.MaxCompletionToken
	return gigachatx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		ProjectID:          strings.TrimSpace(c.ProjectID),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
	}
}
