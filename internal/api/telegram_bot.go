// Package api provides handlers for external APIs and interfaces
package api

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/abelzeko/onewire-logger/internal/entities"
	"github.com/abelzeko/onewire-logger/internal/integration/openai"
	"github.com/abelzeko/onewire-logger/internal/usecases"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramBot handles interactions with the Telegram API
type TelegramBot struct {
	bot         *tgbotapi.BotAPI
	useCase     *usecases.PlotUseCase
	agent       openai.OpenAIService // nil disables free-text handling
	defaultDays int
}

// NewTelegramBot creates a new Telegram bot handler
func NewTelegramBot(botToken string, useCase *usecases.PlotUseCase, agent openai.OpenAIService, defaultDays int) (*TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %v", err)
	}
	if defaultDays <= 0 {
		defaultDays = 1
	}

	return &TelegramBot{
		bot:         bot,
		useCase:     useCase,
		agent:       agent,
		defaultDays: defaultDays,
	}, nil
}

// Start begins listening for and handling Telegram messages
func (t *TelegramBot) Start() {
	log.Printf("Authorized on Telegram account %s", t.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.bot.GetUpdatesChan(u)
	log.Println("Bot is now listening for messages...")

	for update := range updates {
		if update.Message == nil {
			continue
		}

		// Log incoming messages
		log.Printf("Received message from %s (ID: %d): %s",
			update.Message.From.UserName,
			update.Message.From.ID,
			update.Message.Text)

		t.handleMessage(update)
	}
}

// handleMessage processes a Telegram message update
func (t *TelegramBot) handleMessage(update tgbotapi.Update) {
	var response tgbotapi.Chattable
	if update.Message.IsCommand() {
		response = t.handleCommand(update.Message)
	} else {
		response = t.handleNonCommand(update.Message)
	}

	log.Printf("Sending response to user %s", update.Message.From.UserName)
	if _, err := t.bot.Send(response); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

func text(chatID int64, s string) tgbotapi.Chattable {
	return tgbotapi.NewMessage(chatID, s)
}

// handleCommand processes commands like /start, /help, etc.
func (t *TelegramBot) handleCommand(message *tgbotapi.Message) tgbotapi.Chattable {
	chatID := message.Chat.ID

	switch message.Command() {
	case "start":
		log.Printf("Handling /start command for user %s", message.From.UserName)
		return text(chatID, "Welcome to the sensor bot! Use /sensors to see the list of sensors or /help for more information.")

	case "help":
		log.Printf("Handling /help command for user %s", message.From.UserName)
		return text(chatID, "Available commands:\n"+
			"/start - Start the bot\n"+
			"/sensors - Show the list of sensors\n"+
			"/latest [name] - Show the newest readings of a sensor\n"+
			"/plot [name] [days] [temperature|humidity] - Chart a sensor\n"+
			"/help - Show this help message")

	case "sensors":
		log.Printf("Handling /sensors command for user %s", message.From.UserName)
		return t.handleSensorsCommand(chatID)

	case "latest":
		args := message.CommandArguments()
		log.Printf("Handling /latest command with args '%s' for user %s", args, message.From.UserName)
		return t.handleLatestCommand(chatID, strings.TrimSpace(args))

	case "plot":
		args := message.CommandArguments()
		log.Printf("Handling /plot command with args '%s' for user %s", args, message.From.UserName)
		name, days, typ, err := ParsePlotArgs(args, t.defaultDays)
		if err != nil {
			return text(chatID, err.Error()+"\nExample: /plot carport 2 temperature")
		}
		return t.plot(chatID, name, days, typ, "")

	default:
		log.Printf("Received unknown command /%s from user %s", message.Command(), message.From.UserName)
		return text(chatID, "Unknown command. Use /help to see available commands.")
	}
}

// handleSensorsCommand processes the /sensors command
func (t *TelegramBot) handleSensorsCommand(chatID int64) tgbotapi.Chattable {
	names, err := t.useCase.GetSensorNames()
	if err != nil {
		log.Printf("Error fetching sensor names: %v", err)
		return text(chatID, "Error fetching sensor data. Please try again later.")
	}
	if len(names) == 0 {
		return text(chatID, "No sensors have stored readings yet.")
	}

	var b strings.Builder
	b.WriteString("Available sensors:\n\n")
	for _, name := range names {
		b.WriteString("• " + name + "\n")
	}
	b.WriteString("\nUse /latest [name] or /plot [name] to get details.")
	return text(chatID, b.String())
}

// handleLatestCommand processes the /latest [name] command
func (t *TelegramBot) handleLatestCommand(chatID int64, name string) tgbotapi.Chattable {
	if name == "" {
		return text(chatID, "Please specify a sensor name. Example: /latest garage")
	}
	readings, err := t.useCase.GetLatestReadings(name)
	if err != nil {
		log.Printf("Error fetching latest readings: %v", err)
		return text(chatID, "Error fetching sensor data. Please try again later.")
	}
	return text(chatID, usecases.FormatLatest(name, readings))
}

// plot renders a chart into memory and wraps it as a photo message
func (t *TelegramBot) plot(chatID int64, name string, days int, typ entities.ReadingType, caption string) tgbotapi.Chattable {
	var buf bytes.Buffer
	if err := t.useCase.RenderSensor(&buf, name, typ, days); err != nil {
		log.Printf("Error rendering chart for %s: %v", name, err)
		return text(chatID, "Error rendering the chart. Please try again later.")
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{
		Name:  name + ".png",
		Bytes: buf.Bytes(),
	})
	if caption == "" {
		caption = fmt.Sprintf("%s %s, last %d day(s)", name, typ, days)
	}
	photo.Caption = caption
	return photo
}

// handleNonCommand processes regular messages
func (t *TelegramBot) handleNonCommand(message *tgbotapi.Message) tgbotapi.Chattable {
	chatID := message.Chat.ID
	log.Printf("Received non-command message from user %s: %s", message.From.UserName, message.Text)

	if t.agent == nil {
		return text(chatID, "I don't understand. Use /help to see available commands.")
	}

	names, err := t.useCase.GetSensorNames()
	if err != nil {
		log.Printf("Error fetching sensor names: %v", err)
		return text(chatID, "Sorry, I couldn't fetch the list of sensors right now.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	agentResp, err := t.agent.InterpretUserQuery(ctx, message.Text, names)
	if err != nil {
		log.Printf("Error interpreting user query via OpenAI: %v", err)
		return text(chatID, "Sorry, I'm having trouble understanding right now. Please try again later or use /help.")
	}

	log.Printf("Agent response: Command='%s', Sensor='%s', Type='%s', Days=%d",
		agentResp.CommandName, agentResp.SensorName, agentResp.ReadingType, agentResp.Days)

	switch agentResp.CommandName {
	case openai.CommandPlotSensor:
		if agentResp.SensorName == "" {
			return text(chatID, agentResp.UserMessage)
		}
		typ, err := entities.ParseReadingType(agentResp.ReadingType)
		if err != nil {
			typ = entities.Temperature
		}
		return t.plot(chatID, agentResp.SensorName, agentResp.Days, typ, agentResp.UserMessage)
	case openai.CommandLatestReading:
		if agentResp.SensorName == "" {
			return text(chatID, agentResp.UserMessage)
		}
		return t.handleLatestCommand(chatID, agentResp.SensorName)
	case openai.CommandGeneralQuery:
		return text(chatID, agentResp.UserMessage)
	default:
		log.Printf("Agent returned unexpected command: %s", agentResp.CommandName)
		return text(chatID, "I'm not sure how to respond to that. You can use /help for commands.")
	}
}

// ParsePlotArgs parses "<name> [days] [type]" with days and type in any order
func ParsePlotArgs(args string, defaultDays int) (string, int, entities.ReadingType, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "", 0, "", fmt.Errorf("please specify a sensor name")
	}
	if len(fields) > 3 {
		return "", 0, "", fmt.Errorf("too many arguments")
	}

	name := fields[0]
	days := defaultDays
	typ := entities.Temperature
	for _, f := range fields[1:] {
		if n, err := strconv.Atoi(f); err == nil {
			if n <= 0 {
				return "", 0, "", fmt.Errorf("days must be positive")
			}
			days = n
			continue
		}
		parsed, err := entities.ParseReadingType(f)
		if err != nil {
			return "", 0, "", err
		}
		typ = parsed
	}
	return name, days, typ, nil
}
