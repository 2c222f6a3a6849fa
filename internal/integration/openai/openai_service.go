package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Commands the agent may return
const (
	CommandPlotSensor    = "PlotSensor"
	CommandLatestReading = "LatestReading"
	CommandGeneralQuery  = "GeneralQuery"
)

// AgentResponse defines the structured output from the OpenAI agent.
type AgentResponse struct {
	CommandName string `json:"command_name" jsonschema_description:"The command to execute: PlotSensor, LatestReading or GeneralQuery"`
	SensorName  string `json:"sensor_name" jsonschema_description:"The sensor location exactly as it appears in the known list, or empty"`
	ReadingType string `json:"reading_type" jsonschema_description:"temperature or humidity"`
	Days        int    `json:"days" jsonschema_description:"Number of days to look back for a chart, 1 if not specified"`
	UserMessage string `json:"user_message" jsonschema_description:"A message to show back to the user in their original language"`
}

// OpenAIService defines the interface for interacting with the OpenAI agent.
type OpenAIService interface {
	InterpretUserQuery(ctx context.Context, userMessage string, sensors []string) (*AgentResponse, error)
}

// openAIServiceImpl implements the OpenAIService interface.
type openAIServiceImpl struct {
	client openai.Client
	schema interface{}
}

// GenerateSchema generates a JSON schema for a given type.
func GenerateSchema[T any]() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	return schema
}

// NewOpenAIService creates and initializes a new OpenAIService.
func NewOpenAIService() (OpenAIService, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	schema := GenerateSchema[AgentResponse]()

	return &openAIServiceImpl{
		client: client,
		schema: schema,
	}, nil
}

// SystemPrompt builds the instructions given to the agent for a list of sensors
func SystemPrompt(sensors []string) string {
	return fmt.Sprintf(`You answer questions about a home 1-wire sensor network that measures temperature and humidity.

Known sensor locations: %s

Behavior:
1. If the user wants a chart or history for a location from the list:
   - command_name = "PlotSensor"
   - sensor_name = the matching location from the list, or "" if none matches
   - reading_type = "humidity" if they ask about humidity, otherwise "temperature"
   - days = how far back they want to look, 1 if not specified
2. If the user wants the current value for a location:
   - command_name = "LatestReading", with sensor_name as above
3. Anything else:
   - command_name = "GeneralQuery", sensor_name = ""
user_message is always a one-line reply in the user's language.

Output strictly in JSON.`, strings.Join(sensors, ", "))
}

// InterpretUserQuery sends a message to the OpenAI agent and returns the structured response.
func (s *openAIServiceImpl) InterpretUserQuery(ctx context.Context, userMessage string, sensors []string) (*AgentResponse, error) {
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "agent_response",
		Description: openai.String("Structured response containing command, sensor name, reading type, days and user message"),
		Schema:      s.schema,
		Strict:      openai.Bool(true),
	}

	respFormat := openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: schemaParam},
	}

	chat, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt(sensors)),
			openai.UserMessage(userMessage),
		},
		ResponseFormat: respFormat,
		Model:          openai.ChatModelGPT4o,
	})

	if err != nil {
		return nil, fmt.Errorf("error calling OpenAI API: %w", err)
	}

	if len(chat.Choices) == 0 || chat.Choices[0].Message.Content == "" {
		return nil, errors.New("received empty response from OpenAI")
	}

	agentResp, err := ParseAgentResponse(chat.Choices[0].Message.Content)
	if err != nil {
		log.Printf("Failed to unmarshal OpenAI response: %s\nRaw response: %s", err, chat.Choices[0].Message.Content)
		return nil, err
	}
	return agentResp, nil
}

// ParseAgentResponse decodes the agent JSON and fills defaults
func ParseAgentResponse(content string) (*AgentResponse, error) {
	var agentResp AgentResponse
	if err := json.Unmarshal([]byte(content), &agentResp); err != nil {
		return nil, fmt.Errorf("error unmarshalling OpenAI response: %w", err)
	}
	if agentResp.Days <= 0 {
		agentResp.Days = 1
	}
	if agentResp.ReadingType == "" {
		agentResp.ReadingType = "temperature"
	}
	return &agentResp, nil
}
