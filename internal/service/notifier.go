package service

import (
	"context"
	"fmt"
	"strconv"

	"TH_treasure_hunt/internal/model"
	"TH_treasure_hunt/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type NotifierConfig struct {
	BotToken string
	Debug    bool
}

type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type NotifierRepository interface {
	RegistrationByAddress(ctx context.Context, huntID int64, address string) (*model.Registration, error)
}

// Notifier messages participants on Telegram when they finish a hunt and
// when their reward is minted.
type Notifier struct {
	sender MessageSender
	repo   NotifierRepository
}

func NewNotifier(sender MessageSender, repo NotifierRepository) *Notifier {
	return &Notifier{
		sender: sender,
		repo:   repo,
	}
}

func NewTelegramNotifier(config NotifierConfig, repo NotifierRepository) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(config.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bot: %w", err)
	}

	bot.Debug = config.Debug

	return NewNotifier(bot, repo), nil
}

// Run handles events until the channel closes or ctx is done.
func (n *Notifier) Run(ctx context.Context, events <-chan model.Event) {
	log := logger.Logger()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := n.Handle(ctx, event); err != nil {
				log.Warn("failed to send notification",
					zap.String("kind", string(event.Kind)),
					zap.Int64("hunt_id", event.HuntID),
					zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (n *Notifier) Handle(ctx context.Context, event model.Event) error {
	switch event.Kind {
	case model.EventCompleted:
		return n.send(event.ParticipantID,
			fmt.Sprintf("Congratulations! You've completed hunt #%d. Open the app to claim your reward.", event.HuntID))

	case model.EventNFTAwarded:
		address, _ := event.Payload["address"].(string)
		if address == "" {
			return nil
		}
		reg, err := n.repo.RegistrationByAddress(ctx, event.HuntID, address)
		if err != nil {
			return fmt.Errorf("lookup winner %s: %w", address, err)
		}
		return n.send(reg.ParticipantID,
			fmt.Sprintf("Your reward for hunt #%d has been minted (token %v).", event.HuntID, event.Payload["token_id"]))
	}

	return nil
}

// send skips participants that are not Telegram users.
func (n *Notifier) send(participantID, text string) error {
	chatID, err := strconv.ParseInt(participantID, 10, 64)
	if err != nil {
		logger.Logger().Debug("participant has no telegram chat", zap.String("participant_id", participantID))
		return nil
	}

	_, err = n.sender.Send(tgbotapi.NewMessage(chatID, text))
	return err
}
